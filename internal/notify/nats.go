package notify

import (
	"context"
	"log/slog"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"

	"git.home.luguber.info/inful/loaderbuild/internal/foundation/errors"
)

// NATSConfig configures the JetStream sink.
type NATSConfig struct {
	URL     string
	Subject string // prefix; the stream captures <Subject>.>
	Stream  string
	// KVBucket holds the latest message per bundle. Empty disables it.
	KVBucket string
}

// NATSSink publishes through JetStream.
type NATSSink struct {
	conn *nats.Conn
	js   jetstream.JetStream
	kv   jetstream.KeyValue
}

var _ Sink = (*NATSSink)(nil)

// NewNATSSink connects to NATS and makes sure the stream and bucket exist.
func NewNATSSink(ctx context.Context, cfg NATSConfig) (*NATSSink, error) {
	if cfg.URL == "" {
		return nil, errors.ConfigError("nats url is required").Build()
	}
	if cfg.Subject == "" {
		cfg.Subject = DefaultSubject
	}
	if cfg.Stream == "" {
		cfg.Stream = "LOADERBUILD"
	}

	conn, err := nats.Connect(cfg.URL, nats.Name("loaderbuild"))
	if err != nil {
		return nil, errors.WrapError(err, errors.CategoryNetwork, "failed to connect to NATS").
			WithContext("url", cfg.URL).Build()
	}

	js, err := jetstream.New(conn)
	if err != nil {
		conn.Close()
		return nil, errors.WrapError(err, errors.CategoryNetwork, "failed to create JetStream context").Build()
	}

	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	if _, err := js.CreateOrUpdateStream(ctx, jetstream.StreamConfig{
		Name:     cfg.Stream,
		Subjects: []string{cfg.Subject + ".>"},
		MaxAge:   7 * 24 * time.Hour,
	}); err != nil {
		conn.Close()
		return nil, errors.WrapError(err, errors.CategoryNetwork, "failed to create notification stream").
			WithContext("stream", cfg.Stream).Build()
	}

	sink := &NATSSink{conn: conn, js: js}
	if cfg.KVBucket != "" {
		kv, err := js.KeyValue(ctx, cfg.KVBucket)
		if err != nil {
			kv, err = js.CreateKeyValue(ctx, jetstream.KeyValueConfig{
				Bucket:      cfg.KVBucket,
				Description: "Latest update cycle per bundle",
				History:     1,
			})
		}
		if err != nil {
			conn.Close()
			return nil, errors.WrapError(err, errors.CategoryNetwork, "failed to create KV bucket").
				WithContext("bucket", cfg.KVBucket).Build()
		}
		sink.kv = kv
	}

	slog.Info("NATS notifications enabled",
		"url", cfg.URL,
		"subject", cfg.Subject,
		"stream", cfg.Stream,
		"kv_bucket", cfg.KVBucket)
	return sink, nil
}

// Publish implements Sink.
func (s *NATSSink) Publish(ctx context.Context, subject string, data []byte) error {
	if _, err := s.js.Publish(ctx, subject, data); err != nil {
		return errors.WrapError(err, errors.CategoryNetwork, "failed to publish notification").
			WithContext("subject", subject).Build()
	}
	return nil
}

// Remember implements Sink.
func (s *NATSSink) Remember(ctx context.Context, bundle string, data []byte) error {
	if s.kv == nil {
		return nil
	}
	if _, err := s.kv.Put(ctx, bundle, data); err != nil {
		return errors.WrapError(err, errors.CategoryNetwork, "failed to store latest cycle").
			WithContext("bundle", bundle).Build()
	}
	return nil
}

// Latest returns the last message stored for bundle, or nil when none is.
func (s *NATSSink) Latest(ctx context.Context, bundle string) ([]byte, error) {
	if s.kv == nil {
		return nil, nil
	}
	entry, err := s.kv.Get(ctx, Token(bundle))
	if err != nil {
		if err == jetstream.ErrKeyNotFound {
			return nil, nil
		}
		return nil, errors.WrapError(err, errors.CategoryNetwork, "failed to read latest cycle").
			WithContext("bundle", bundle).Build()
	}
	return entry.Value(), nil
}

// Close drains and closes the connection.
func (s *NATSSink) Close() error {
	if s.conn == nil {
		return nil
	}
	return s.conn.Drain()
}
