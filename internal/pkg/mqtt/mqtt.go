package mqtt

import (
	"errors"
	"sync"
	"time"

	paho_mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

const discoveryPrefix = "homeassistant"

// client is the part of paho_mqtt.Client the sink uses.
type client interface {
	Connect() paho_mqtt.Token
	Publish(topic string, qos byte, retained bool, payload interface{}) paho_mqtt.Token
}

type service struct {
	client     client
	configured sync.Map
	timeout    time.Duration
	logger     *zap.Logger
}

func New(client client) *service {
	return &service{
		client:  client,
		timeout: 5 * time.Second,
		logger:  zap.L(),
	}
}

// NewClient builds a paho client with a unique client id per process.
func NewClient(host, username, password string) paho_mqtt.Client {
	opts := paho_mqtt.NewClientOptions().
		AddBroker(host).
		SetClientID("solax-http-" + uuid.NewString()).
		SetUsername(username).
		SetPassword(password).
		SetAutoReconnect(true).
		SetConnectTimeout(10 * time.Second)
	return paho_mqtt.NewClient(opts)
}

func (s *service) Connect() error {
	token := s.client.Connect()
	res := token.WaitTimeout(s.timeout)
	if err := token.Error(); err != nil {
		return err
	}
	if res {
		return nil
	}
	return errors.New("unable to connect in time")
}

func (s *service) wait(token paho_mqtt.Token) error {
	if !token.WaitTimeout(s.timeout) {
		return errors.New("publish timed out")
	}
	return token.Error()
}
