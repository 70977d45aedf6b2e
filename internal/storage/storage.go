// Package storage provides persistent data storage for the dropout risk
// engine. It uses BoltDB as the underlying storage engine to store prediction
// history, the latest-prediction index used for change detection, the
// notification log, and published model artifacts.
//
// Artifact publication is atomic: the blob and the "latest" pointer are
// written in a single transaction, so readers see either the fully-old or
// fully-new artifact, never a partial one.
package storage

import (
	"bytes"
	"encoding/json"
	"fmt"
	"path/filepath"
	"time"

	"go.etcd.io/bbolt"

	"edurisk-engine/internal/engine"
	"edurisk-engine/internal/ml"
	"edurisk-engine/internal/notify"
)

const (
	predictionsBucket   = "predictions"   // full prediction history, key studentID_timestamp
	latestBucket        = "latest"        // latest prediction per student, key studentID
	notificationsBucket = "notifications" // emitted events, key timestamp_eventID
	artifactsBucket     = "artifacts"     // artifact blobs, key version
	artifactMetaBucket  = "artifact_meta" // "current" -> active version
)

const currentArtifactKey = "current"

// Store provides persistent storage backed by BoltDB.
type Store struct {
	db *bbolt.DB
}

// New opens (or creates) the database under dataPath and ensures all buckets
// exist.
func New(dataPath string) (*Store, error) {
	dbPath := filepath.Join(dataPath, "edurisk-data.db")

	db, err := bbolt.Open(dbPath, 0o600, &bbolt.Options{Timeout: 1 * time.Second})
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	err = db.Update(func(tx *bbolt.Tx) error {
		for _, name := range []string{predictionsBucket, latestBucket, notificationsBucket, artifactsBucket, artifactMetaBucket} {
			if _, err := tx.CreateBucketIfNotExists([]byte(name)); err != nil {
				return fmt.Errorf("create %s bucket: %w", name, err)
			}
		}
		return nil
	})
	if err != nil {
		db.Close()
		return nil, err
	}

	return &Store{db: db}, nil
}

// Close closes the database connection gracefully.
func (s *Store) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

// SavePrediction appends the prediction to the history bucket and updates the
// student's latest-prediction index in the same transaction.
func (s *Store) SavePrediction(p engine.Prediction) error {
	return s.db.Update(func(tx *bbolt.Tx) error {
		data, err := json.Marshal(p)
		if err != nil {
			return fmt.Errorf("marshal prediction: %w", err)
		}

		key := fmt.Sprintf("%s_%d", p.StudentID, p.ComputedAt.UnixNano())
		if err := tx.Bucket([]byte(predictionsBucket)).Put([]byte(key), data); err != nil {
			return err
		}
		return tx.Bucket([]byte(latestBucket)).Put([]byte(p.StudentID), data)
	})
}

// LatestPrediction returns the student's most recent prediction, or nil when
// the student has never been scored.
func (s *Store) LatestPrediction(studentID string) (*engine.Prediction, error) {
	var p *engine.Prediction

	err := s.db.View(func(tx *bbolt.Tx) error {
		data := tx.Bucket([]byte(latestBucket)).Get([]byte(studentID))
		if data == nil {
			return nil
		}
		var pred engine.Prediction
		if err := json.Unmarshal(data, &pred); err != nil {
			return fmt.Errorf("unmarshal latest prediction: %w", err)
		}
		p = &pred
		return nil
	})

	return p, err
}

// PredictionHistory returns a student's predictions within a time range,
// oldest first. The range is inclusive of both ends.
func (s *Store) PredictionHistory(studentID string, start, end time.Time) ([]engine.Prediction, error) {
	var history []engine.Prediction

	err := s.db.View(func(tx *bbolt.Tx) error {
		c := tx.Bucket([]byte(predictionsBucket)).Cursor()

		prefix := []byte(studentID + "_")
		startKey := []byte(fmt.Sprintf("%s_%d", studentID, start.UnixNano()))
		endKey := []byte(fmt.Sprintf("%s_%d", studentID, end.UnixNano()))

		for k, v := c.Seek(startKey); k != nil && bytes.Compare(k, endKey) <= 0; k, v = c.Next() {
			if !bytes.HasPrefix(k, prefix) {
				continue
			}
			var p engine.Prediction
			if err := json.Unmarshal(v, &p); err != nil {
				continue // Skip malformed records
			}
			history = append(history, p)
		}
		return nil
	})

	return history, err
}

// SaveNotification appends an emitted notification event to the log.
func (s *Store) SaveNotification(ev notify.Event) error {
	return s.db.Update(func(tx *bbolt.Tx) error {
		data, err := json.Marshal(ev)
		if err != nil {
			return fmt.Errorf("marshal notification: %w", err)
		}

		key := fmt.Sprintf("%d_%s", ev.TriggeredAt.UnixNano(), ev.ID)
		return tx.Bucket([]byte(notificationsBucket)).Put([]byte(key), data)
	})
}

// NotificationsSince returns events triggered at or after the given time,
// oldest first.
func (s *Store) NotificationsSince(since time.Time) ([]notify.Event, error) {
	var events []notify.Event

	err := s.db.View(func(tx *bbolt.Tx) error {
		c := tx.Bucket([]byte(notificationsBucket)).Cursor()
		startKey := []byte(fmt.Sprintf("%d_", since.UnixNano()))

		for k, v := c.Seek(startKey); k != nil; k, v = c.Next() {
			var ev notify.Event
			if err := json.Unmarshal(v, &ev); err != nil {
				continue
			}
			events = append(events, ev)
		}
		return nil
	})

	return events, err
}

// PublishArtifact stores the artifact blob and repoints the current-version
// marker in one write transaction. A reader concurrent with the publish sees
// either the previous artifact or the new one in full.
func (s *Store) PublishArtifact(a *ml.Artifact) error {
	if err := a.Verify(); err != nil {
		return err
	}

	data, err := a.Marshal()
	if err != nil {
		return fmt.Errorf("marshal artifact: %w", err)
	}

	return s.db.Update(func(tx *bbolt.Tx) error {
		if err := tx.Bucket([]byte(artifactsBucket)).Put([]byte(a.Version), data); err != nil {
			return err
		}
		return tx.Bucket([]byte(artifactMetaBucket)).Put([]byte(currentArtifactKey), []byte(a.Version))
	})
}

// CurrentArtifact loads the most recently published artifact, or nil when no
// artifact has been published yet.
func (s *Store) CurrentArtifact() (*ml.Artifact, error) {
	var blob []byte

	err := s.db.View(func(tx *bbolt.Tx) error {
		version := tx.Bucket([]byte(artifactMetaBucket)).Get([]byte(currentArtifactKey))
		if version == nil {
			return nil
		}
		data := tx.Bucket([]byte(artifactsBucket)).Get(version)
		if data == nil {
			return fmt.Errorf("current artifact %s missing from store", version)
		}
		blob = append([]byte(nil), data...)
		return nil
	})
	if err != nil || blob == nil {
		return nil, err
	}

	return ml.UnmarshalArtifact(blob)
}

// Artifact loads a specific artifact version.
func (s *Store) Artifact(version string) (*ml.Artifact, error) {
	var blob []byte

	err := s.db.View(func(tx *bbolt.Tx) error {
		data := tx.Bucket([]byte(artifactsBucket)).Get([]byte(version))
		if data == nil {
			return fmt.Errorf("artifact %s not found", version)
		}
		blob = append([]byte(nil), data...)
		return nil
	})
	if err != nil {
		return nil, err
	}

	return ml.UnmarshalArtifact(blob)
}

// ArtifactVersions lists all stored artifact versions in key order.
func (s *Store) ArtifactVersions() ([]string, error) {
	var versions []string

	err := s.db.View(func(tx *bbolt.Tx) error {
		return tx.Bucket([]byte(artifactsBucket)).ForEach(func(k, _ []byte) error {
			versions = append(versions, string(k))
			return nil
		})
	})

	return versions, err
}
