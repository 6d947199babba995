package core

import (
	"fmt"
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

type (
	ServerConfig struct {
		Host                      string
		DebugHost                 string
		ShutdownTimeout           time.Duration
		JWTExpirationDelta        time.Duration
		JWTRefreshExpirationDelta time.Duration
	}

	DatabaseConfig struct {
		Engine        string
		Host          string
		Port          string
		Name          string
		User          string
		Password      string
		AdminUser     string
		AdminPassword string
		DisableTLS    bool
	}

	Config struct {
		Env             string // DEV (local; default), TEST, QA, PROD
		Build           string
		Debug           bool
		TestMode        bool
		AppName         string
		SecretKey       string
		FrontendBaseURL string
		RollbarToken    string
		SendgridApiKey  string
		NotifyByEmail   bool
		ExportDir       string
		WorkDir         string
		Location        *time.Location

		Server   ServerConfig
		Database DatabaseConfig

		defaultFromEmail string
	}
)

func (c DatabaseConfig) Address() string {
	return net.JoinHostPort(c.Host, c.Port)
}

func (c *Config) DefaultFromEmail() mail.Address {
	addr, err := mail.ParseAddress(c.defaultFromEmail)
	if err != nil {
		return mail.Address{Name: c.AppName, Address: c.defaultFromEmail}
	}
	if addr.Name == "" {
		addr.Name = c.AppName
	}
	return *addr
}

func NewConfig() *Config {
	conf := viper.New()

	// defaults
	conf.SetTypeByDefaultValue(true)
	conf.SetDefault("debug", true)
	conf.SetDefault("build", "develop")
	conf.SetDefault("app_name", "Tuker.in")
	conf.SetDefault("secret_key", "k3v9-q!wm2$rr+t0u=ecoz&8xnb(e#p_h1$4g2^s@dlv7z")
	conf.SetDefault("frontend_base_url", "http://localhost:5173")
	conf.SetDefault("default_from_email", "noreply@localhost")
	conf.SetDefault("notify_by_email", false)
	conf.SetDefault("export_dir", ".")
	conf.SetDefault("time_zone", "Asia/Jakarta")
	conf.SetDefault("rollbar_token", "")
	conf.SetDefault("sendgrid_api_key", "")

	conf.SetDefault("server_host", ":8000")
	conf.SetDefault("server_debug_host", ":4000")
	conf.SetDefault("server_shutdown_timeout", 5*time.Second)
	conf.SetDefault("jwt_expiration_delta", 7*24*time.Hour)
	conf.SetDefault("jwt_refresh_expiration_delta", 4*time.Hour)

	conf.SetDefault("database_engine", "postgres")
	conf.SetDefault("database_host", "localhost")
	conf.SetDefault("database_port", "5432")
	conf.SetDefault("database_name", "tukerin")
	conf.SetDefault("database_user", "tukerin")
	conf.SetDefault("database_password", "tukerin")
	conf.SetDefault("database_admin_user", "")
	conf.SetDefault("database_admin_password", "")
	conf.SetDefault("database_disable_tls", false)

	env := strings.ToUpper(os.Getenv("ENV"))
	switch env {
	case "":
		env = "DEV"
	case "TEST":
		conf.SetDefault("test_mode", true)
	}
	conf.SetEnvPrefix(env)

	wd := Getwd()

	// load .env if it exists (ignore if it does not)
	dotEnvPath := filepath.Join(wd, "config", ".env."+strings.ToLower(env))
	if _, err := os.Stat(dotEnvPath); err == nil {
		if err := godotenv.Load(dotEnvPath); err != nil {
			log.Fatalf("config.godotenv(%s): %v", dotEnvPath, err)
		}
	} else if !os.IsNotExist(err) {
		log.Fatalf("config.os.Stat(%s): %v", dotEnvPath, err)
	}
	conf.AutomaticEnv()

	loc, err := time.LoadLocation(conf.GetString("time_zone"))
	if err != nil {
		log.Print(fmt.Errorf("config.LoadLocation(%s): %v", conf.GetString("time_zone"), err))
		loc = time.Local
	}

	return &Config{
		Env:             env,
		Build:           conf.GetString("build"),
		Debug:           conf.GetBool("debug"),
		TestMode:        conf.GetBool("test_mode"),
		AppName:         conf.GetString("app_name"),
		SecretKey:       conf.GetString("secret_key"),
		FrontendBaseURL: conf.GetString("frontend_base_url"),
		RollbarToken:    conf.GetString("rollbar_token"),
		SendgridApiKey:  conf.GetString("sendgrid_api_key"),
		NotifyByEmail:   conf.GetBool("notify_by_email"),
		ExportDir:       conf.GetString("export_dir"),
		WorkDir:         wd,
		Location:        loc,
		Server: ServerConfig{
			Host:                      conf.GetString("server_host"),
			DebugHost:                 conf.GetString("server_debug_host"),
			ShutdownTimeout:           conf.GetDuration("server_shutdown_timeout"),
			JWTExpirationDelta:        conf.GetDuration("jwt_expiration_delta"),
			JWTRefreshExpirationDelta: conf.GetDuration("jwt_refresh_expiration_delta"),
		},
		Database: DatabaseConfig{
			Engine:        conf.GetString("database_engine"),
			Host:          conf.GetString("database_host"),
			Port:          conf.GetString("database_port"),
			Name:          conf.GetString("database_name"),
			User:          conf.GetString("database_user"),
			Password:      conf.GetString("database_password"),
			AdminUser:     conf.GetString("database_admin_user"),
			AdminPassword: conf.GetString("database_admin_password"),
			DisableTLS:    conf.GetBool("database_disable_tls"),
		},
		defaultFromEmail: conf.GetString("default_from_email"),
	}
}
