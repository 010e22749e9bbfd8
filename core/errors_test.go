package core

import (
	"database/sql"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
)

func TestErrorKind(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want string
	}{
		{name: "validation", err: NewFieldError("title", "too short"), want: KindValidation},
		{name: "wrapped validation", err: errors.Wrap(NewValidationError(nil), "creating"), want: KindValidation},
		{name: "authorization", err: NewAuthorizationError(ReasonNotOwner), want: KindAuthorization},
		{name: "not found", err: errors.Wrap(NewNotFoundError("assignment"), "getting"), want: KindNotFound},
		{name: "conflict", err: NewConflictError("assignment"), want: KindConflict},
		{name: "dependency", err: errors.Wrap(NewDependencyError(sql.ErrConnDone, "querying"), "listing"), want: KindDependency},
		{name: "other", err: errors.New("boom"), want: KindInternal},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ErrorKind(tt.err))
		})
	}
}

func TestValidationError(t *testing.T) {
	err := NewValidationError(nil,
		FieldError{Field: "title", Error: "title must be at least 3 characters in length"},
		FieldError{Field: "max_score", Error: "max_score must be 1 or greater"},
		FieldError{Field: "title", Error: "ignored"},
	)
	vErr := err.(*ValidationError)
	assert.Equal(t, map[string]string{
		"title":     "title must be at least 3 characters in length",
		"max_score": "max_score must be 1 or greater",
	}, vErr.FieldMap())
	assert.Contains(t, err.Error(), "max_score: max_score must be 1 or greater")
}

func TestDependencyError_Unwrap(t *testing.T) {
	err := errors.Wrap(NewDependencyError(sql.ErrConnDone, "querying"), "listing")
	assert.True(t, errors.Is(err, sql.ErrConnDone))
	assert.IsType(t, &DependencyError{}, errors.Cause(err))
}

func TestRepoError(t *testing.T) {
	errNotFound := errors.New("thing not found")

	assert.NoError(t, RepoError(nil, "getting thing", errNotFound, "thing"))

	err := RepoError(errors.Wrap(errNotFound, "querying"), "getting thing", errNotFound, "thing")
	assert.Equal(t, KindNotFound, ErrorKind(err))
	assert.EqualError(t, err, "thing not found")

	conflict := NewConflictError("thing")
	assert.Equal(t, conflict, RepoError(conflict, "updating thing", errNotFound, "thing"))

	err = RepoError(sql.ErrConnDone, "getting thing", errNotFound, "thing")
	assert.Equal(t, KindDependency, ErrorKind(err))
	assert.EqualError(t, err, "getting thing: "+sql.ErrConnDone.Error())
}
