//go:build integration

// Package test runs the backend against real databases and kafka in
// docker containers. Run with go test -tags integration ./test/...
package test

import (
	"context"
	"fmt"
	"time"

	"github.com/docker/go-connections/nat"
	"github.com/gorilla/mux"
	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/suite"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/network"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/opengeek/tacit-sub000/core"
	"github.com/opengeek/tacit-sub000/core/backend"
	"github.com/opengeek/tacit-sub000/core/client"
	"github.com/opengeek/tacit-sub000/core/notify"
	"github.com/opengeek/tacit-sub000/core/persistence"
	"github.com/opengeek/tacit-sub000/core/persistence/mongo"
	"github.com/opengeek/tacit-sub000/core/persistence/postgres"
	"github.com/opengeek/tacit-sub000/core/persistence/rethink"
)

const configurationJSON = `{
	"resources": [
		{
			"resource": "user",
			"fields": [
				{"name": "name"},
				{"name": "email"},
				{"name": "role", "default": "member"},
				{"name": "password"}
			],
			"rules": {"name": "required|maxlen:32", "email": "email"},
			"secret_field": "password"
		}
	]
}`

// IntegrationTestSuite starts one container per database plus kafka
type IntegrationTestSuite struct {
	suite.Suite

	network    *testcontainers.DockerNetwork
	containers []testcontainers.Container
	registry   *persistence.Registry

	connections map[string]persistence.Connection
	kafkaConn   *kafka.Conn
	kafkaAddr   string
	topic       string
}

func (s *IntegrationTestSuite) start(ctx context.Context, req testcontainers.ContainerRequest, port string) string {
	req.Networks = []string{s.network.Name}
	c, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: req,
		Started:          true,
	})
	s.Require().NoError(err)
	s.containers = append(s.containers, c)
	if port == "" {
		return ""
	}
	host, err := c.Host(ctx)
	s.Require().NoError(err)
	mapped, err := c.MappedPort(ctx, nat.Port(port))
	s.Require().NoError(err)
	return fmt.Sprintf("%s:%s", host, mapped.Port())
}

func (s *IntegrationTestSuite) SetupSuite() {
	ctx := context.Background()

	var err error
	s.network, err = network.New(ctx)
	s.Require().NoError(err)

	s.registry = persistence.NewRegistry()
	mongo.Register(s.registry)
	rethink.Register(s.registry)
	postgres.Register(s.registry)
	s.connections = map[string]persistence.Connection{}

	s.connections[mongo.Backend] = persistence.Connection{
		Backend:  mongo.Backend,
		Server:   s.start(ctx, testcontainers.ContainerRequest{Image: "mongo:7", ExposedPorts: []string{"27017/tcp"}, WaitingFor: wait.ForListeningPort("27017/tcp")}, "27017"),
		Database: "tacit",
	}
	s.connections[rethink.Backend] = persistence.Connection{
		Backend:  rethink.Backend,
		Server:   s.start(ctx, testcontainers.ContainerRequest{Image: "rethinkdb:2.4", ExposedPorts: []string{"28015/tcp"}, WaitingFor: wait.ForListeningPort("28015/tcp")}, "28015"),
		Database: "test",
	}
	s.connections[postgres.Backend] = persistence.Connection{
		Backend: postgres.Backend,
		Server: s.start(ctx, testcontainers.ContainerRequest{
			Image:        "postgres:15",
			ExposedPorts: []string{"5432/tcp"},
			Env: map[string]string{
				"POSTGRES_USER":     "testuser",
				"POSTGRES_PASSWORD": "testpass",
				"POSTGRES_DB":       "testdb",
			},
			WaitingFor: wait.ForLog("database system is ready to accept connections").WithOccurrence(2),
		}, "5432"),
		Database: "testdb",
		Username: "testuser",
		Password: "testpass",
	}

	s.start(ctx, testcontainers.ContainerRequest{
		Image:        "confluentinc/cp-zookeeper:7.5.0",
		ExposedPorts: []string{"2181/tcp"},
		Env: map[string]string{
			"ZOOKEEPER_CLIENT_PORT": "2181",
			"ZOOKEEPER_TICK_TIME":   "2000",
		},
		WaitingFor:     wait.ForListeningPort("2181/tcp"),
		NetworkAliases: map[string][]string{s.network.Name: {"zookeeper"}},
	}, "")
	s.kafkaAddr = s.start(ctx, testcontainers.ContainerRequest{
		Image:        "confluentinc/cp-kafka:7.5.0",
		ExposedPorts: []string{"9092:9092/tcp"},
		Env: map[string]string{
			"KAFKA_BROKER_ID":                        "1",
			"KAFKA_ZOOKEEPER_CONNECT":                "zookeeper:2181",
			"KAFKA_LISTENERS":                        "PLAINTEXT://0.0.0.0:9092,INTERNAL://0.0.0.0:9093",
			"KAFKA_ADVERTISED_LISTENERS":             "PLAINTEXT://localhost:9092,INTERNAL://kafka:9093",
			"KAFKA_LISTENER_SECURITY_PROTOCOL_MAP":   "PLAINTEXT:PLAINTEXT,INTERNAL:PLAINTEXT",
			"KAFKA_INTER_BROKER_LISTENER_NAME":       "INTERNAL",
			"KAFKA_OFFSETS_TOPIC_REPLICATION_FACTOR": "1",
		},
		WaitingFor:     wait.ForLog("started (kafka.server.KafkaServer)"),
		NetworkAliases: map[string][]string{s.network.Name: {"kafka"}},
	}, "9092")

	s.kafkaConn, err = kafka.Dial("tcp", s.kafkaAddr)
	s.Require().NoError(err)
	s.topic = fmt.Sprintf("notifications-%d", time.Now().UnixNano())
	s.Require().NoError(s.kafkaConn.CreateTopics(kafka.TopicConfig{
		Topic:             s.topic,
		NumPartitions:     1,
		ReplicationFactor: 1,
	}))
}

func (s *IntegrationTestSuite) TearDownSuite() {
	ctx := context.Background()
	if s.kafkaConn != nil {
		s.NoError(s.kafkaConn.DeleteTopics(s.topic))
		s.kafkaConn.Close()
	}
	for i := len(s.containers) - 1; i >= 0; i-- {
		s.NoError(s.containers[i].Terminate(ctx))
	}
	if s.network != nil {
		s.NoError(s.network.Remove(ctx))
	}
}

// newBackend opens the database of id and serves the test configuration
// on it. Notifications go to kafka if notifier is nil.
func (s *IntegrationTestSuite) newBackend(id string, notifier core.Notifier) (client.Client, persistence.Repository) {
	ctx := context.Background()
	repo, err := s.registry.Open(ctx, s.connections[id])
	s.Require().NoError(err)
	s.T().Cleanup(func() { repo.Close(ctx) })

	if notifier == nil {
		kafka := notify.NewKafka([]string{s.kafkaAddr}, s.topic)
		s.T().Cleanup(func() { kafka.Close() })
		notifier = kafka
	}

	router := mux.NewRouter()
	b, err := backend.New(&backend.Builder{
		Config:     configurationJSON,
		Repository: repo,
		Router:     router,
		Notifier:   notifier,
	})
	s.Require().NoError(err)

	res, _ := b.Resource("user")
	_ = repo.Destroy(ctx, res.Configuration.Container())
	b.CreateContainers(ctx)
	return client.NewWithRouter(router), repo
}
