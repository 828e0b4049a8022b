package storage

import (
	"context"
	"fmt"
	"time"

	"cloud.google.com/go/firestore"
	"google.golang.org/api/option"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/pauljones0/skynet-bot/internal/models"
)

const firestoreCollection = "sessions"

// sessionDocument is the Firestore shape of a session.
type sessionDocument struct {
	Cookies   map[string]string `firestore:"cookies"`
	UserAgent string            `firestore:"userAgent"`
	UpdatedAt time.Time         `firestore:"updatedAt"`
}

func toDocument(s models.Session, now time.Time) sessionDocument {
	cookies := s.Cookies
	if cookies == nil {
		cookies = map[string]string{}
	}
	return sessionDocument{Cookies: cookies, UserAgent: s.UserAgent, UpdatedAt: now}
}

func (d sessionDocument) session() models.Session {
	return models.Session{Cookies: d.Cookies, UserAgent: d.UserAgent}
}

// FirestoreStore keeps the session in a single document so several hosts can
// hand the same identity over to each other.
type FirestoreStore struct {
	client    *firestore.Client
	sessionID string
}

func NewFirestoreStore(ctx context.Context, projectID, sessionID, credentialsFile string) (*FirestoreStore, error) {
	if projectID == "" {
		return nil, fmt.Errorf("firestore project id is required")
	}
	if sessionID == "" {
		return nil, fmt.Errorf("firestore session id is required")
	}

	var opts []option.ClientOption
	if credentialsFile != "" {
		opts = append(opts, option.WithCredentialsFile(credentialsFile))
	}
	client, err := firestore.NewClient(ctx, projectID, opts...)
	if err != nil {
		return nil, fmt.Errorf("firestore.NewClient: %w", err)
	}
	return &FirestoreStore{client: client, sessionID: sessionID}, nil
}

func (c *FirestoreStore) Load(ctx context.Context) (models.Session, error) {
	doc, err := c.client.Collection(firestoreCollection).Doc(c.sessionID).Get(ctx)
	if err != nil {
		if status.Code(err) == codes.NotFound {
			return models.Session{}, nil
		}
		return models.Session{}, fmt.Errorf("failed to get session %s: %w", c.sessionID, err)
	}
	if !doc.Exists() {
		return models.Session{}, nil
	}

	var d sessionDocument
	if err := doc.DataTo(&d); err != nil {
		return models.Session{}, fmt.Errorf("failed to unmarshal session data: %w", err)
	}
	return d.session(), nil
}

func (c *FirestoreStore) Save(ctx context.Context, s models.Session) error {
	_, err := c.client.Collection(firestoreCollection).Doc(c.sessionID).Set(ctx, toDocument(s, time.Now()))
	if err != nil {
		return fmt.Errorf("failed to save session %s: %w", c.sessionID, err)
	}
	return nil
}

func (c *FirestoreStore) Close() error {
	return c.client.Close()
}
