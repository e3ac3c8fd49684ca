package publisher

import (
	"encoding/json"
	"time"

	gtfs "github.com/aaroncutress/gtfs-itineraries"
	"github.com/charmbracelet/log"
	"github.com/nats-io/nats.go"
)

// Announces every published snapshot on a NATS subject
type NATSPublisher struct {
	nc      *nats.Conn
	subject string
	metrics PublisherMetrics
}

type PublisherMetrics interface {
	NATSPublishedInc()
	NATSPublishErrInc()
	NATSSetConnected(connected bool)
}

func NewNATSPublisher(url, subject string, m PublisherMetrics) (*NATSPublisher, error) {
	nc, err := nats.Connect(url,
		nats.Name("gtfsvis"),
		nats.DisconnectHandler(func(_ *nats.Conn) {
			if m != nil {
				m.NATSSetConnected(false)
			}
			log.Warn("NATS disconnected")
		}),
		nats.ReconnectHandler(func(_ *nats.Conn) {
			if m != nil {
				m.NATSSetConnected(true)
			}
			log.Info("NATS reconnected")
		}),
		nats.ClosedHandler(func(_ *nats.Conn) {
			if m != nil {
				m.NATSSetConnected(false)
			}
			log.Info("NATS closed")
		}),
	)
	if err != nil {
		return nil, err
	}
	if m != nil {
		m.NATSSetConnected(true)
	}
	return &NATSPublisher{nc: nc, subject: subject, metrics: m}, nil
}

func (p *NATSPublisher) Close() {
	if p.nc != nil {
		p.nc.Drain()
		p.nc.Close()
	}
}

type SnapshotMessage struct {
	Version     int       `json:"version"`
	Trips       int       `json:"trips"`
	Itineraries int       `json:"itineraries"`
	BuiltAt     time.Time `json:"built_at"`
}

func newSnapshotMessage(stats gtfs.BuildStats, builtAt time.Time) SnapshotMessage {
	return SnapshotMessage{
		Version:     stats.Version,
		Trips:       stats.Resolved,
		Itineraries: stats.Itineraries,
		BuiltAt:     builtAt.UTC(),
	}
}

// SnapshotPublished announces the snapshot. Failures are logged only.
func (p *NATSPublisher) SnapshotPublished(stats gtfs.BuildStats) {
	b, err := json.Marshal(newSnapshotMessage(stats, time.Now()))
	if err != nil {
		log.Errorf("Failed to encode snapshot message: %v", err)
		return
	}

	err = p.nc.Publish(p.subject, b)
	if p.metrics != nil {
		if err != nil {
			p.metrics.NATSPublishErrInc()
		} else {
			p.metrics.NATSPublishedInc()
		}
	}
	if err != nil {
		log.Errorf("Failed to publish snapshot %d on %s: %v", stats.Version, p.subject, err)
		return
	}
	log.Debugf("Published snapshot %d on %s", stats.Version, p.subject)
}

func (p *NATSPublisher) BuildFailed(error) {}
