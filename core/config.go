package core

import (
	"log"
	"net"
	"net/mail"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

type Config struct {
	AppName         string
	Build           string
	Env             string // DEV (local; default), TEST, QA, PROD
	Debug           bool
	TestMode        bool
	SecretKey       string
	FrontendBaseURL string
	RollbarToken    string
	SendgridApiKey  string

	defaultFromEmail mail.Address

	Server struct {
		Host                      string
		Address                   string
		DebugHost                 string
		DisableReqLogs            bool
		ShutdownTimeout           time.Duration
		JWTExpirationDelta        time.Duration
		JWTRefreshExpirationDelta time.Duration
	}

	Database struct {
		Engine        string // postgres | inmem
		Host          string
		Port          string
		Name          string
		User          string
		Password      string
		AdminUser     string
		AdminPassword string
		DisableTLS    bool
	}

	Assignment struct {
		DueDateGrace time.Duration
	}

	Reminders struct {
		Window   time.Duration
		Interval time.Duration // 0 disables the in-process scheduler
		Dispatch bool
	}
}

func (c *Config) DefaultFromEmail() mail.Address {
	return c.defaultFromEmail
}

func (c *Config) SetDefaultFromEmail(addr mail.Address) {
	c.defaultFromEmail = addr
}

func (c *Config) IsProd() bool {
	return c.Env == "PROD"
}

// DatabaseAddress returns the "host:port" of the database server.
func (c *Config) DatabaseAddress() string {
	return net.JoinHostPort(c.Database.Host, c.Database.Port)
}

// NewConfig loads the configuration for the current ENV from defaults, config/.env.<env> and the environment.
func NewConfig() *Config {
	v := viper.New()

	env := strings.ToUpper(os.Getenv("ENV"))
	if env == "" {
		env = "DEV"
	}

	// defaults
	v.SetTypeByDefaultValue(true)
	v.SetDefault("appName", "CoachDesk")
	v.SetDefault("build", "develop")
	v.SetDefault("debug", env == "DEV")
	v.SetDefault("testMode", env == "TEST")
	v.SetDefault("secretKey", "k3y!4-v%g9t2-local-only-q8d#w1m*z7c^bx5n0h")
	v.SetDefault("frontendBaseURL", "http://localhost:3000")
	v.SetDefault("defaultFromEmail", "noreply@localhost")
	v.SetDefault("rollbarToken", "")
	v.SetDefault("sendgridApiKey", "")

	v.SetDefault("server.host", "localhost")
	v.SetDefault("server.address", ":8000")
	v.SetDefault("server.debugHost", ":4000")
	v.SetDefault("server.disableReqLogs", false)
	v.SetDefault("server.shutdownTimeout", 5*time.Second)
	v.SetDefault("server.jwtExpirationDelta", 7*24*time.Hour)
	v.SetDefault("server.jwtRefreshExpirationDelta", 4*time.Hour)

	v.SetDefault("database.engine", "postgres")
	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.port", "5432")
	v.SetDefault("database.name", "coachdesk")
	v.SetDefault("database.user", "coachdesk")
	v.SetDefault("database.password", "")
	v.SetDefault("database.adminUser", "postgres")
	v.SetDefault("database.adminPassword", "")
	v.SetDefault("database.disableTLS", env == "DEV" || env == "TEST")

	v.SetDefault("assignment.dueDateGrace", 60*time.Second)

	v.SetDefault("reminders.window", 24*time.Hour)
	v.SetDefault("reminders.interval", time.Duration(0))
	v.SetDefault("reminders.dispatch", true)

	// load .env if it exists (ignore if it does not)
	dotEnvPath := filepath.Join("config", ".env."+strings.ToLower(env))
	if _, err := os.Stat(dotEnvPath); err == nil {
		if err := godotenv.Load(dotEnvPath); err != nil {
			log.Fatalf("config.godotenv(%s): %v", dotEnvPath, err)
		}
	} else if !os.IsNotExist(err) {
		log.Fatalf("config.os.Stat(%s): %v", dotEnvPath, err)
	}

	// eg. DEV_DATABASE_HOST overrides database.host
	v.SetEnvPrefix(env)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	conf := &Config{
		AppName:         v.GetString("appName"),
		Build:           v.GetString("build"),
		Env:             env,
		Debug:           v.GetBool("debug"),
		TestMode:        v.GetBool("testMode"),
		SecretKey:       v.GetString("secretKey"),
		FrontendBaseURL: v.GetString("frontendBaseURL"),
		RollbarToken:    v.GetString("rollbarToken"),
		SendgridApiKey:  v.GetString("sendgridApiKey"),
	}
	conf.defaultFromEmail = mail.Address{Name: conf.AppName, Address: v.GetString("defaultFromEmail")}

	conf.Server.Host = v.GetString("server.host")
	conf.Server.Address = v.GetString("server.address")
	conf.Server.DebugHost = v.GetString("server.debugHost")
	conf.Server.DisableReqLogs = v.GetBool("server.disableReqLogs")
	conf.Server.ShutdownTimeout = v.GetDuration("server.shutdownTimeout")
	conf.Server.JWTExpirationDelta = v.GetDuration("server.jwtExpirationDelta")
	conf.Server.JWTRefreshExpirationDelta = v.GetDuration("server.jwtRefreshExpirationDelta")

	conf.Database.Engine = v.GetString("database.engine")
	conf.Database.Host = v.GetString("database.host")
	conf.Database.Port = v.GetString("database.port")
	conf.Database.Name = v.GetString("database.name")
	conf.Database.User = v.GetString("database.user")
	conf.Database.Password = v.GetString("database.password")
	conf.Database.AdminUser = v.GetString("database.adminUser")
	conf.Database.AdminPassword = v.GetString("database.adminPassword")
	conf.Database.DisableTLS = v.GetBool("database.disableTLS")

	conf.Assignment.DueDateGrace = v.GetDuration("assignment.dueDateGrace")

	conf.Reminders.Window = v.GetDuration("reminders.window")
	conf.Reminders.Interval = v.GetDuration("reminders.interval")
	conf.Reminders.Dispatch = v.GetBool("reminders.dispatch")

	return conf
}

// NewTestConfig returns a config suitable for tests, independent of the environment.
func NewTestConfig() *Config {
	conf := &Config{
		AppName:         "CoachDesk",
		Build:           "test",
		Env:             "TEST",
		TestMode:        true,
		SecretKey:       "test-secret",
		FrontendBaseURL: "http://localhost:3000",
	}
	conf.defaultFromEmail = mail.Address{Name: conf.AppName, Address: "noreply@localhost"}
	conf.Server.JWTExpirationDelta = time.Hour
	conf.Server.JWTRefreshExpirationDelta = 4 * time.Hour
	conf.Database.Engine = "inmem"
	conf.Assignment.DueDateGrace = 60 * time.Second
	conf.Reminders.Window = 24 * time.Hour
	conf.Reminders.Dispatch = true
	return conf
}
