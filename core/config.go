package core

import (
	"log"
	"net"
	"net/mail"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

type Config struct {
	Debug                     bool
	TestMode                  bool
	AppName                   string
	SecretKey                 string
	Env                       string
	Build                     string
	FrontendBaseURL           string
	DefaultFromEmail          mail.Address
	SendgridApiKey            string
	RollbarToken              string
	PasswordResetTimeoutDelta time.Duration

	Server struct {
		Host                      string
		DebugHost                 string
		JWTExpirationDelta        time.Duration
		JWTRefreshExpirationDelta time.Duration
		ShutdownTimeout           time.Duration
		AuthRateLimit             float64 // requests per second, per IP
		AuthRateBurst             int
	}

	Database struct {
		Engine        string // "postgres" or "memory"
		Host          string
		Port          int
		Name          string
		User          string
		Password      string
		AdminUser     string
		AdminPassword string
		DisableTLS    bool
	}

	Scheduler struct {
		Enabled                 bool
		ReportSchedulesSpec     string
		CertificateExpirySpec   string
		NotificationCleanupSpec string
		CertificateExpiryWindow time.Duration
	}
}

func (c *Config) IsInMemoryDB() bool {
	return c.Database.Engine == "memory"
}

func (c *Config) DatabaseAddress() string {
	return net.JoinHostPort(c.Database.Host, strconv.Itoa(c.Database.Port))
}

// NewConfig reads the configuration from the environment.
// ENV selects the environment (DEV by default, TEST, QA, PROD) and is used as the prefix of every variable,
// e.g. DEV_DATABASE_HOST. A `config/.env.<env>` file is loaded first when present.
func NewConfig() *Config {
	v := viper.New()

	// defaults
	v.SetTypeByDefaultValue(true)
	v.SetDefault("debug", true)
	v.SetDefault("testMode", false)
	v.SetDefault("appName", "EduPortal")
	v.SetDefault("secretKey", "dev-4q9#n2!xk7@v0$wz8%s6^r1&b3*m5(e")
	v.SetDefault("build", "develop")
	v.SetDefault("frontendBaseURL", "http://localhost:3000")
	v.SetDefault("defaultFromName", "EduPortal")
	v.SetDefault("defaultFromEmail", "noreply@localhost")
	v.SetDefault("sendgridApiKey", "")
	v.SetDefault("rollbarToken", "")
	v.SetDefault("passwordResetTimeoutDelta", 3*24*time.Hour)

	v.SetDefault("server.host", "0.0.0.0:8000")
	v.SetDefault("server.debugHost", "0.0.0.0:4000")
	v.SetDefault("server.jwtExpirationDelta", 7*24*time.Hour)
	v.SetDefault("server.jwtRefreshExpirationDelta", 4*time.Hour)
	v.SetDefault("server.shutdownTimeout", 5*time.Second)
	v.SetDefault("server.authRateLimit", 1.0)
	v.SetDefault("server.authRateBurst", 5)

	v.SetDefault("database.engine", "postgres")
	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.port", 5432)
	v.SetDefault("database.name", "eduportal")
	v.SetDefault("database.user", "eduportal")
	v.SetDefault("database.password", "eduportal")
	v.SetDefault("database.adminUser", "postgres")
	v.SetDefault("database.adminPassword", "postgres")
	v.SetDefault("database.disableTLS", true)

	v.SetDefault("scheduler.enabled", true)
	v.SetDefault("scheduler.reportSchedulesSpec", "*/5 * * * *")
	v.SetDefault("scheduler.certificateExpirySpec", "0 6 * * *")
	v.SetDefault("scheduler.notificationCleanupSpec", "@hourly")
	v.SetDefault("scheduler.certificateExpiryWindow", 30*24*time.Hour)

	env := strings.ToUpper(os.Getenv("ENV")) // DEV (local; default), TEST, QA, PROD
	switch env {
	case "":
		env = "DEV"
	case "TEST":
		v.SetDefault("testMode", true)
	}
	v.SetEnvPrefix(env)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	// load .env if it exists (ignore if it does not)
	dotEnvPath := filepath.Join("config", ".env."+strings.ToLower(env))
	if _, err := os.Stat(dotEnvPath); err == nil {
		if err := godotenv.Load(dotEnvPath); err != nil {
			log.Fatalf("config.godotenv(%s): %v", dotEnvPath, err)
		}
	} else if !os.IsNotExist(err) {
		log.Fatalf("config.os.Stat(%s): %v", dotEnvPath, err)
	}
	v.AutomaticEnv()

	conf := &Config{
		Debug:                     v.GetBool("debug"),
		TestMode:                  v.GetBool("testMode"),
		AppName:                   v.GetString("appName"),
		SecretKey:                 v.GetString("secretKey"),
		Env:                       env,
		Build:                     v.GetString("build"),
		FrontendBaseURL:           strings.TrimSuffix(v.GetString("frontendBaseURL"), "/"),
		DefaultFromEmail:          mail.Address{Name: v.GetString("defaultFromName"), Address: v.GetString("defaultFromEmail")},
		SendgridApiKey:            v.GetString("sendgridApiKey"),
		RollbarToken:              v.GetString("rollbarToken"),
		PasswordResetTimeoutDelta: v.GetDuration("passwordResetTimeoutDelta"),
	}

	conf.Server.Host = v.GetString("server.host")
	conf.Server.DebugHost = v.GetString("server.debugHost")
	conf.Server.JWTExpirationDelta = v.GetDuration("server.jwtExpirationDelta")
	conf.Server.JWTRefreshExpirationDelta = v.GetDuration("server.jwtRefreshExpirationDelta")
	conf.Server.ShutdownTimeout = v.GetDuration("server.shutdownTimeout")
	conf.Server.AuthRateLimit = v.GetFloat64("server.authRateLimit")
	conf.Server.AuthRateBurst = v.GetInt("server.authRateBurst")

	conf.Database.Engine = v.GetString("database.engine")
	conf.Database.Host = v.GetString("database.host")
	conf.Database.Port = v.GetInt("database.port")
	conf.Database.Name = v.GetString("database.name")
	conf.Database.User = v.GetString("database.user")
	conf.Database.Password = v.GetString("database.password")
	conf.Database.AdminUser = v.GetString("database.adminUser")
	conf.Database.AdminPassword = v.GetString("database.adminPassword")
	conf.Database.DisableTLS = v.GetBool("database.disableTLS")

	conf.Scheduler.Enabled = v.GetBool("scheduler.enabled")
	conf.Scheduler.ReportSchedulesSpec = v.GetString("scheduler.reportSchedulesSpec")
	conf.Scheduler.CertificateExpirySpec = v.GetString("scheduler.certificateExpirySpec")
	conf.Scheduler.NotificationCleanupSpec = v.GetString("scheduler.notificationCleanupSpec")
	conf.Scheduler.CertificateExpiryWindow = v.GetDuration("scheduler.certificateExpiryWindow")

	if !conf.Debug && !conf.TestMode && strings.HasPrefix(conf.SecretKey, "dev-") {
		log.Fatalf("config: %s_SECRETKEY must be set outside DEV", env)
	}
	return conf
}

// NewTestConfig returns a Config suitable for tests: debug off, test mode on, in-memory storage.
func NewTestConfig() *Config {
	conf := &Config{
		TestMode:                  true,
		AppName:                   "EduPortal",
		SecretKey:                 "test-secret",
		Env:                       "TEST",
		Build:                     "test",
		FrontendBaseURL:           "http://localhost:3000",
		DefaultFromEmail:          mail.Address{Name: "EduPortal", Address: "noreply@localhost"},
		PasswordResetTimeoutDelta: 3 * 24 * time.Hour,
	}
	conf.Server.JWTExpirationDelta = 7 * 24 * time.Hour
	conf.Server.JWTRefreshExpirationDelta = 4 * time.Hour
	conf.Server.ShutdownTimeout = time.Second
	conf.Server.AuthRateLimit = 100
	conf.Server.AuthRateBurst = 100
	conf.Database.Engine = "memory"
	conf.Scheduler.ReportSchedulesSpec = "*/5 * * * *"
	conf.Scheduler.CertificateExpirySpec = "0 6 * * *"
	conf.Scheduler.NotificationCleanupSpec = "@hourly"
	conf.Scheduler.CertificateExpiryWindow = 30 * 24 * time.Hour
	return conf
}
