// Package config reads the service settings from the environment.
package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joeshaw/envdecode"

	"github.com/opengeek/tacit-sub000/core/persistence"
)

// Settings holds the configuration of a service
type Settings struct {
	Backend  string `env:"TACIT_BACKEND,default=memory" description:"the persistence backend: memory, mongodb, rethinkdb or postgres"`
	Server   string `env:"TACIT_SERVER" description:"host:port of the database server"`
	Database string `env:"TACIT_DATABASE,default=tacit" description:"the database name"`
	Username string `env:"TACIT_USERNAME" description:"the database user"`
	Password string `env:"TACIT_PASSWORD" description:"the database password"`
	// Options are key=value pairs separated by ";", for example "sslmode=require;schema=app"
	Options string `env:"TACIT_DATABASE_OPTIONS" description:"backend specific connection options"`

	Debug           bool   `env:"TACIT_DEBUG,default=false" description:"add request_duration to every response"`
	Identities      string `env:"TACIT_IDENTITIES" description:"identity file, JSON or YAML, or s3://bucket/key"`
	Auth            string `env:"TACIT_AUTH,default=hmac" description:"authorization scheme: hmac, basic, jwt or none"`
	ScopesParameter string `env:"TACIT_SCOPES_PARAMETER,default=zoom" description:"query parameter selecting embedded resources"`
	Listen          string `env:"TACIT_LISTEN,default=:3000" description:"listen address of the service"`
	LogLevel        string `env:"TACIT_LOG_LEVEL,default=info" description:"the logrus log level"`
	Config          string `env:"TACIT_CONFIG" description:"JSON file with the resource configuration"`
	Schemas         string `env:"TACIT_SCHEMAS" description:"directory of JSON schemas available to the schema rule"`
	Compress        bool   `env:"TACIT_COMPRESS,default=true" description:"gzip responses for clients that accept it"`
	CORS            bool   `env:"TACIT_CORS,default=false" description:"answer preflight requests and add CORS headers"`
	Metrics         bool   `env:"TACIT_METRICS,default=true" description:"serve prometheus metrics on /metrics"`
	KafkaBrokers    string `env:"TACIT_KAFKA_BROKERS" description:"comma separated kafka brokers, notifications are off without"`
	KafkaTopic      string `env:"TACIT_KAFKA_TOPIC,default=resource_notification" description:"topic of the change notifications"`

	// StartTime is the time the settings were loaded
	StartTime time.Time `env:"-"`
}

// Load decodes the settings from the environment
func Load() (*Settings, error) {
	s := &Settings{}
	if err := envdecode.Decode(s); err != nil && !errors.Is(err, envdecode.ErrNoTargetFieldsAreSet) {
		return nil, fmt.Errorf("cannot decode settings: %w", err)
	}
	if s.Backend == "" {
		s.Backend = "memory"
	}
	s.StartTime = time.Now()
	return s, nil
}

// Connection returns the descriptor of the persistence backend
func (s *Settings) Connection() persistence.Connection {
	options := map[string]string{}
	for _, pair := range strings.Split(s.Options, ";") {
		key, value, found := strings.Cut(strings.TrimSpace(pair), "=")
		if found && key != "" {
			options[key] = value
		}
	}
	return persistence.Connection{
		Backend:  s.Backend,
		Server:   s.Server,
		Database: s.Database,
		Username: s.Username,
		Password: s.Password,
		Options:  options,
	}
}

// Brokers returns the kafka brokers, nil if notifications are off
func (s *Settings) Brokers() []string {
	var brokers []string
	for _, broker := range strings.Split(s.KafkaBrokers, ",") {
		if broker = strings.TrimSpace(broker); broker != "" {
			brokers = append(brokers, broker)
		}
	}
	return brokers
}

// ResourceConfiguration returns the content of the configuration file, or
// an empty configuration if no file is set
func (s *Settings) ResourceConfiguration() (string, error) {
	if s.Config == "" {
		return "", nil
	}
	data, err := os.ReadFile(s.Config)
	if err != nil {
		return "", fmt.Errorf("cannot read resource configuration: %w", err)
	}
	return string(data), nil
}

// Uptime returns the time since the settings were loaded
func (s *Settings) Uptime() time.Duration {
	return time.Since(s.StartTime)
}
