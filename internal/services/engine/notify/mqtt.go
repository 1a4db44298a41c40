package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"strings"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"

	"github.com/beaconreign/engine/internal/platform/timeouts"
)

// MQTTDispatcher publishes notifications to an MQTT broker at QoS 0.
type MQTTDispatcher struct {
	client mqtt.Client
	prefix string
}

// NewMQTTDispatcher connects to the broker and returns a dispatcher
// publishing under topicPrefix (default "beaconreign").
func NewMQTTDispatcher(brokerAddr, topicPrefix string) (*MQTTDispatcher, error) {
	brokerAddr = strings.TrimSpace(brokerAddr)
	if brokerAddr == "" {
		return nil, fmt.Errorf("broker address is required")
	}
	if strings.TrimSpace(topicPrefix) == "" {
		topicPrefix = "beaconreign"
	}
	clientID := fmt.Sprintf("beaconreign-engine-%d", time.Now().UnixNano())
	opts := mqtt.NewClientOptions().AddBroker(brokerAddr).SetClientID(clientID)
	opts = opts.SetOrderMatters(false)
	client := mqtt.NewClient(opts)
	if token := client.Connect(); token.WaitTimeout(timeouts.NotifyPublish) && token.Error() != nil {
		return nil, fmt.Errorf("connect to broker: %w", token.Error())
	}
	return &MQTTDispatcher{client: client, prefix: topicPrefix}, nil
}

// Dispatch publishes the event, logging failures without propagating them.
func (d *MQTTDispatcher) Dispatch(_ context.Context, evt Event) {
	if d == nil || d.client == nil {
		return
	}
	data, err := json.Marshal(evt)
	if err != nil {
		log.Printf("notify encode %s: %v", evt.Kind, err)
		return
	}
	topic := fmt.Sprintf("%s/%s", d.prefix, evt.Kind)
	token := d.client.Publish(topic, 0, false, data)
	if token.WaitTimeout(timeouts.NotifyPublish) {
		if err := token.Error(); err != nil {
			log.Printf("notify publish %s: %v", topic, err)
		}
	}
}

// Close disconnects from the broker.
func (d *MQTTDispatcher) Close() {
	if d == nil || d.client == nil {
		return
	}
	d.client.Disconnect(250)
}
