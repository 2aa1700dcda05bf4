package pipeline

import (
	"context"
	"encoding/json"
	"log"
	"os"
	"path/filepath"

	"github.com/google/uuid"

	"github.com/jonathan/apply-assist/internal/db"
)

// artifactSink persists step artifacts. Either target is optional: runs
// without a database can still keep artifacts on disk, and failures only
// log, never stop the run.
type artifactSink struct {
	database *db.DB
	runID    uuid.UUID
	dir      string
}

func (s *artifactSink) save(ctx context.Context, step string, content any) {
	if s.database != nil && s.runID != uuid.Nil {
		if err := s.database.SaveArtifact(ctx, s.runID, step, content); err != nil {
			log.Printf("[PIPELINE] failed to save %s artifact: %v", step, err)
		}
	}
	if s.dir != "" {
		data, err := json.MarshalIndent(content, "", "  ")
		if err != nil {
			log.Printf("[PIPELINE] failed to encode %s artifact: %v", step, err)
			return
		}
		s.writeFile(step+".json", data)
	}
}

func (s *artifactSink) saveText(ctx context.Context, step, text string) {
	if s.database != nil && s.runID != uuid.Nil {
		if err := s.database.SaveTextArtifact(ctx, s.runID, step, text); err != nil {
			log.Printf("[PIPELINE] failed to save %s artifact: %v", step, err)
		}
	}
	if s.dir != "" {
		s.writeFile(step+".txt", []byte(text))
	}
}

func (s *artifactSink) writeFile(name string, data []byte) {
	if err := os.MkdirAll(s.dir, 0o755); err != nil {
		log.Printf("[PIPELINE] failed to create artifact dir %s: %v", s.dir, err)
		return
	}
	path := filepath.Join(s.dir, name)
	if err := os.WriteFile(path, data, 0o644); err != nil {
		log.Printf("[PIPELINE] failed to write artifact %s: %v", path, err)
	}
}
