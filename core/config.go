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
		User          string
		Password      string
		AdminUser     string
		AdminPassword string
		Host          string
		Port          string
		Name          string
		DisableTLS    bool
	}

	RedisConfig struct {
		Addr        string
		Password    string
		DB          int
		Disabled    bool
		DocumentTTL time.Duration
	}

	BillingConfig struct {
		Currency     string
		ProAmount    int // smallest currency unit
		MonthlyPrice int
		PeriodDays   int
	}

	WorkerConfig struct {
		DailyQuizSpec    string
		WeeklyQuizSpec   string
		WeakTopicSpec    string
		StudyEmailSpec   string
		SubscriptionSpec string
		LockTTL          time.Duration
		Concurrency      int
	}

	VertexAIConfig struct {
		Project  string
		Location string
		Model    string
	}

	Config struct {
		Debug                     bool
		TestMode                  bool
		Env                       string
		Build                     string
		AppName                   string
		SecretKey                 string
		RollbarToken              string
		FrontendBaseURL           string
		SendgridApiKey            string
		BooksDir                  string
		PlacementModelPath        string
		PasswordResetTimeoutDelta time.Duration

		Server   ServerConfig
		Database DatabaseConfig
		Redis    RedisConfig
		Billing  BillingConfig
		Worker   WorkerConfig
		VertexAI VertexAIConfig

		defaultFromEmail string
	}
)

// NewConfig reads the app configuration from defaults, the optional `config/.env.<env>` file and the environment.
// Environment variables are prefixed with the current ENV (DEV by default): eg. `DEV_DATABASE_HOST`.
func NewConfig() *Config {
	v := viper.New()

	// defaults
	v.SetTypeByDefaultValue(true)
	v.SetDefault("debug", true)
	v.SetDefault("testMode", false)
	v.SetDefault("build", "develop")
	v.SetDefault("appName", "AI Tutor")
	v.SetDefault("secretKey", "x7c!d0q#t2-tutor$9v+u@4l^w8zr&b1m(e)ks3yp6ng5fhj")
	v.SetDefault("rollbarToken", "")
	v.SetDefault("frontendBaseURL", "http://localhost:3000")
	v.SetDefault("defaultFromEmail", "AI Tutor <noreply@localhost>")
	v.SetDefault("sendgridApiKey", "")
	v.SetDefault("booksDir", "books")
	v.SetDefault("placementModelPath", "")
	v.SetDefault("passwordResetTimeoutDelta", 3*24*time.Hour)

	v.SetDefault("server.host", "0.0.0.0:8000")
	v.SetDefault("server.debugHost", "0.0.0.0:4000")
	v.SetDefault("server.shutdownTimeout", 5*time.Second)
	v.SetDefault("server.jwtExpirationDelta", 4*time.Hour)
	v.SetDefault("server.jwtRefreshExpirationDelta", 7*24*time.Hour)

	v.SetDefault("database.engine", "postgres")
	v.SetDefault("database.user", "tutor")
	v.SetDefault("database.password", "tutor")
	v.SetDefault("database.adminUser", "postgres")
	v.SetDefault("database.adminPassword", "postgres")
	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.port", "5432")
	v.SetDefault("database.name", "ai_tutor")
	v.SetDefault("database.disableTLS", true)

	v.SetDefault("redis.addr", "localhost:6379")
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)
	v.SetDefault("redis.disabled", false)
	v.SetDefault("redis.documentTTL", 24*time.Hour)

	v.SetDefault("billing.currency", "INR")
	v.SetDefault("billing.proAmount", 49900)
	v.SetDefault("billing.monthlyPrice", 499)
	v.SetDefault("billing.periodDays", 30)

	v.SetDefault("worker.dailyQuizSpec", "5 0 * * *")
	v.SetDefault("worker.weeklyQuizSpec", "0 6 * * 1")
	v.SetDefault("worker.weakTopicSpec", "0 4 * * *")
	v.SetDefault("worker.studyEmailSpec", "0 7 * * *")
	v.SetDefault("worker.subscriptionSpec", "0 1 * * *")
	v.SetDefault("worker.lockTTL", 10*time.Minute)
	v.SetDefault("worker.concurrency", 8)

	v.SetDefault("vertexAI.project", "")
	v.SetDefault("vertexAI.location", "us-central1")
	v.SetDefault("vertexAI.model", "gemini-1.5-flash")

	env := strings.ToUpper(os.Getenv("ENV")) // DEV (local; default), TEST, QA, PROD
	switch env {
	case "":
		env = "DEV"
	case "TEST":
		v.SetDefault("testMode", true)
	case "QA", "PROD":
		v.SetDefault("debug", false)
	}
	v.SetEnvPrefix(env)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	// load .env if it exists (ignore if it does not)
	if root, ok := ProjectRoot(); ok {
		dotEnvPath := filepath.Join(root, "config", ".env."+strings.ToLower(env))
		if _, err := os.Stat(dotEnvPath); err == nil {
			if err := godotenv.Load(dotEnvPath); err != nil {
				log.Fatalf("config.godotenv(%s): %v", dotEnvPath, err)
			}
		} else if !os.IsNotExist(err) {
			log.Fatalf("config.os.Stat(%s): %v", dotEnvPath, err)
		}
	}
	v.AutomaticEnv()

	return &Config{
		Debug:                     v.GetBool("debug"),
		TestMode:                  v.GetBool("testMode"),
		Env:                       env,
		Build:                     v.GetString("build"),
		AppName:                   v.GetString("appName"),
		SecretKey:                 v.GetString("secretKey"),
		RollbarToken:              v.GetString("rollbarToken"),
		FrontendBaseURL:           strings.TrimRight(v.GetString("frontendBaseURL"), "/"),
		SendgridApiKey:            v.GetString("sendgridApiKey"),
		BooksDir:                  v.GetString("booksDir"),
		PlacementModelPath:        v.GetString("placementModelPath"),
		PasswordResetTimeoutDelta: v.GetDuration("passwordResetTimeoutDelta"),
		Server: ServerConfig{
			Host:                      v.GetString("server.host"),
			DebugHost:                 v.GetString("server.debugHost"),
			ShutdownTimeout:           v.GetDuration("server.shutdownTimeout"),
			JWTExpirationDelta:        v.GetDuration("server.jwtExpirationDelta"),
			JWTRefreshExpirationDelta: v.GetDuration("server.jwtRefreshExpirationDelta"),
		},
		Database: DatabaseConfig{
			Engine:        v.GetString("database.engine"),
			User:          v.GetString("database.user"),
			Password:      v.GetString("database.password"),
			AdminUser:     v.GetString("database.adminUser"),
			AdminPassword: v.GetString("database.adminPassword"),
			Host:          v.GetString("database.host"),
			Port:          v.GetString("database.port"),
			Name:          v.GetString("database.name"),
			DisableTLS:    v.GetBool("database.disableTLS"),
		},
		Redis: RedisConfig{
			Addr:        v.GetString("redis.addr"),
			Password:    v.GetString("redis.password"),
			DB:          v.GetInt("redis.db"),
			Disabled:    v.GetBool("redis.disabled"),
			DocumentTTL: v.GetDuration("redis.documentTTL"),
		},
		Billing: BillingConfig{
			Currency:     v.GetString("billing.currency"),
			ProAmount:    v.GetInt("billing.proAmount"),
			MonthlyPrice: v.GetInt("billing.monthlyPrice"),
			PeriodDays:   v.GetInt("billing.periodDays"),
		},
		Worker: WorkerConfig{
			DailyQuizSpec:    v.GetString("worker.dailyQuizSpec"),
			WeeklyQuizSpec:   v.GetString("worker.weeklyQuizSpec"),
			WeakTopicSpec:    v.GetString("worker.weakTopicSpec"),
			StudyEmailSpec:   v.GetString("worker.studyEmailSpec"),
			SubscriptionSpec: v.GetString("worker.subscriptionSpec"),
			LockTTL:          v.GetDuration("worker.lockTTL"),
			Concurrency:      v.GetInt("worker.concurrency"),
		},
		VertexAI: VertexAIConfig{
			Project:  v.GetString("vertexAI.project"),
			Location: v.GetString("vertexAI.location"),
			Model:    v.GetString("vertexAI.model"),
		},
		defaultFromEmail: v.GetString("defaultFromEmail"),
	}
}

func (c *Config) DefaultFromEmail() mail.Address {
	addr, err := mail.ParseAddress(c.defaultFromEmail)
	if err != nil {
		return mail.Address{Name: c.AppName, Address: c.defaultFromEmail}
	}
	return *addr
}

func (c DatabaseConfig) Address() string {
	return net.JoinHostPort(c.Host, c.Port)
}

// ProjectRoot walks up from the working directory until it finds the go.mod file.
// go-test changes the working directory to the package being tested, so relative paths are not reliable.
func ProjectRoot() (string, bool) {
	dir, err := os.Getwd()
	if err != nil {
		return "", false
	}
	for {
		if fi, err := os.Stat(filepath.Join(dir, "go.mod")); err == nil && !fi.IsDir() {
			return dir, true
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			return "", false
		}
		dir = parent
	}
}
