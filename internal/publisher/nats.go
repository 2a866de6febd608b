package publisher

import (
	"encoding/json"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/nats-io/nats.go"
)

// NATSPublisher broadcasts simulated vehicle movement over NATS so tracking
// UIs and downstream consumers can subscribe per vehicle or with wildcards.
type NATSPublisher struct {
	nc          *nats.Conn
	logSubjects bool
	metrics     PublisherMetrics
}

type PublisherMetrics interface {
	NATSPublishedInc()
	NATSPublishErrInc()
	PublishObserve(d time.Duration)
	NATSSetConnected(connected bool)
}

func NewNATSPublisher(url string, logSubjects bool, m PublisherMetrics) (*NATSPublisher, error) {
	nc, err := nats.Connect(url,
		nats.Name("fleet-simulator"),
		nats.DisconnectHandler(func(_ *nats.Conn) {
			if m != nil {
				m.NATSSetConnected(false)
			}
			log.Printf("nats disconnected")
		}),
		nats.ReconnectHandler(func(_ *nats.Conn) {
			if m != nil {
				m.NATSSetConnected(true)
			}
			log.Printf("nats reconnected")
		}),
		nats.ClosedHandler(func(_ *nats.Conn) {
			if m != nil {
				m.NATSSetConnected(false)
			}
			log.Printf("nats closed")
		}),
	)
	if err != nil {
		return nil, err
	}
	if m != nil {
		m.NATSSetConnected(true)
	}
	return &NATSPublisher{nc: nc, logSubjects: logSubjects, metrics: m}, nil
}

func (p *NATSPublisher) Close() {
	if p.nc != nil {
		p.nc.Drain()
		p.nc.Close()
	}
}

// PositionMessage is published on fleet.position.<vehicle> after every
// committed progress update.
type PositionMessage struct {
	VehicleID  string    `json:"vehicleId"`
	ShipmentID string    `json:"shipmentId,omitempty"`
	Timestamp  time.Time `json:"timestamp"`
	Lat        float64   `json:"lat"`
	Lon        float64   `json:"lon"`
	Bearing    float64   `json:"bearing"`
	RouteIndex int       `json:"routeIndex"`
	Progress   float64   `json:"progress"`
	ETA        time.Time `json:"eta"`
}

// ArrivalMessage is published on fleet.arrival.<vehicle> once when a vehicle
// reaches the end of its route and its shipment is closed out.
type ArrivalMessage struct {
	VehicleID      string    `json:"vehicleId"`
	ShipmentID     string    `json:"shipmentId,omitempty"`
	ShipmentNumber string    `json:"shipmentNumber,omitempty"`
	Status         string    `json:"status"`
	Timestamp      time.Time `json:"timestamp"`
	Lat            float64   `json:"lat"`
	Lon            float64   `json:"lon"`
}

func (p *NATSPublisher) PublishPosition(msg PositionMessage) error {
	subject := fmt.Sprintf("fleet.position.%s", subjectToken(msg.VehicleID))
	return p.publish(subject, msg)
}

func (p *NATSPublisher) PublishArrival(msg ArrivalMessage) error {
	subject := fmt.Sprintf("fleet.arrival.%s", subjectToken(msg.VehicleID))
	return p.publish(subject, msg)
}

func (p *NATSPublisher) publish(subject string, msg any) error {
	b, err := json.Marshal(msg)
	if err != nil {
		return err
	}
	if p.logSubjects {
		log.Printf("nats publish subject=%s", subject)
	}
	start := time.Now()
	err = p.nc.Publish(subject, b)
	if p.metrics != nil {
		p.metrics.PublishObserve(time.Since(start))
		if err != nil {
			p.metrics.NATSPublishErrInc()
		} else {
			p.metrics.NATSPublishedInc()
		}
	}
	return err
}

func subjectToken(s string) string {
	s = strings.TrimSpace(s)
	// NATS token cannot contain spaces, '>', '*', or trailing '.'
	repl := strings.NewReplacer(" ", "_", ".", "_", ">", "_", "*", "_", "/", "_", "\t", "_")
	s = repl.Replace(s)
	if s == "" {
		s = "_"
	}
	return s
}
