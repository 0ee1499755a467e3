package feed

import (
	"context"
	"fmt"
	"time"

	"github.com/lib/pq"
	log "github.com/sirupsen/logrus"
)

// TriggerSQL installs a trigger that NOTIFYs Channel on every change to
// the leads table.
const TriggerSQL = `
CREATE OR REPLACE FUNCTION notify_leads_changes() RETURNS trigger AS $$
BEGIN
	PERFORM pg_notify('` + Channel + `', TG_OP);
	RETURN NULL;
END;
$$ LANGUAGE plpgsql;

DROP TRIGGER IF EXISTS leads_changes ON leads;
CREATE TRIGGER leads_changes
	AFTER INSERT OR UPDATE OR DELETE ON leads
	FOR EACH STATEMENT EXECUTE PROCEDURE notify_leads_changes();
`

// PGFeed listens for NOTIFY on Channel. Each subscription holds its own
// listener connection.
type PGFeed struct {
	dsn        string
	minBackoff time.Duration
	maxBackoff time.Duration
}

func NewPGFeed(dsn string) *PGFeed {
	return &PGFeed{dsn: dsn, minBackoff: 10 * time.Second, maxBackoff: time.Minute}
}

func (f *PGFeed) Subscribe(ctx context.Context) (<-chan Event, error) {
	l := pq.NewListener(f.dsn, f.minBackoff, f.maxBackoff, func(ev pq.ListenerEventType, err error) {
		if err != nil {
			log.WithError(err).Warn("leads listener")
		}
	})
	if err := l.Listen(Channel); err != nil {
		l.Close()
		return nil, fmt.Errorf("listen %s: %w", Channel, err)
	}

	ch := make(chan Event, 1)
	go func() {
		defer close(ch)
		defer l.Close()
		for {
			select {
			case <-ctx.Done():
				return
			case n := <-l.Notify:
				// nil after a reconnect: notifications may have been lost
				src := "postgres"
				if n == nil {
					src = "postgres-reconnect"
				}
				send(ch, Event{Source: src, At: time.Now()})
			case <-time.After(90 * time.Second):
				go l.Ping()
			}
		}
	}()
	return ch, nil
}
