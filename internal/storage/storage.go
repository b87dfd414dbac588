// Package storage persists conversations as flat JSON files, one per
// conversation, with a cached index for listing.
package storage

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/johnayoung/llm-council/internal/council"
)

const indexFileName = "conversations_index.json"

// ErrNotFound is returned when a conversation does not exist.
var ErrNotFound = errors.New("conversation not found")

// Message is one entry in a conversation. User messages carry Content;
// assistant messages carry the stage results, where Stage2/Stage3/Metadata
// are omitted entirely when the corresponding stage did not run; error
// messages carry Error.
type Message struct {
	Role     string                    `json:"role"`
	Content  *string                   `json:"content,omitempty"`
	Error    string                    `json:"error,omitempty"`
	Stage1   []council.StageOneEntry   `json:"stage1,omitempty"`
	Stage2   []council.StageTwoEntry   `json:"stage2,omitempty"`
	Stage3   *council.StageThreeResult `json:"stage3,omitempty"`
	Metadata *council.TurnMetadata     `json:"metadata,omitempty"`
}

// Conversation is a full conversation with all messages.
type Conversation struct {
	ID        string    `json:"id"`
	CreatedAt string    `json:"created_at"`
	Title     string    `json:"title"`
	Messages  []Message `json:"messages"`
}

// Meta is conversation metadata for list views.
type Meta struct {
	ID           string `json:"id"`
	CreatedAt    string `json:"created_at"`
	Title        string `json:"title"`
	MessageCount int    `json:"message_count"`
}

// Store is a directory-backed conversation store. Safe for concurrent use.
type Store struct {
	mu  sync.Mutex
	dir string
}

// New creates a store rooted at dir, creating it if needed.
func New(dir string) (*Store, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("creating data directory: %w", err)
	}
	return &Store{dir: dir}, nil
}

func (s *Store) conversationPath(id string) string {
	return filepath.Join(s.dir, id+".json")
}

func (s *Store) indexPath() string {
	return filepath.Join(s.dir, indexFileName)
}

// Create starts a new, empty conversation with the given identifier.
func (s *Store) Create(id string) (*Conversation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	conv := &Conversation{
		ID:        id,
		CreatedAt: time.Now().UTC().Format(time.RFC3339),
		Title:     "New Conversation",
		Messages:  []Message{},
	}
	if err := s.save(conv); err != nil {
		return nil, err
	}
	return conv, nil
}

// Get loads a conversation. Returns ErrNotFound when it does not exist.
func (s *Store) Get(id string) (*Conversation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.load(id)
}

func (s *Store) load(id string) (*Conversation, error) {
	data, err := os.ReadFile(s.conversationPath(id))
	if errors.Is(err, os.ErrNotExist) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("reading conversation: %w", err)
	}

	var conv Conversation
	if err := json.Unmarshal(data, &conv); err != nil {
		return nil, fmt.Errorf("parsing conversation: %w", err)
	}
	return &conv, nil
}

func (s *Store) save(conv *Conversation) error {
	data, err := json.MarshalIndent(conv, "", "  ")
	if err != nil {
		return fmt.Errorf("encoding conversation: %w", err)
	}
	if err := os.WriteFile(s.conversationPath(conv.ID), data, 0o644); err != nil {
		return fmt.Errorf("writing conversation: %w", err)
	}
	return s.updateIndexEntry(conv)
}

// List returns metadata for all conversations, newest first. A missing or
// corrupted index is rebuilt from the conversation files.
func (s *Store) List() ([]Meta, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	index, err := s.loadIndex()
	if err != nil {
		return s.rebuildIndex()
	}
	return index, nil
}

// Delete removes a conversation and its index entry.
func (s *Store) Delete(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	err := os.Remove(s.conversationPath(id))
	if errors.Is(err, os.ErrNotExist) {
		return ErrNotFound
	}
	if err != nil {
		return fmt.Errorf("deleting conversation: %w", err)
	}

	if index, err := s.loadIndex(); err == nil {
		kept := index[:0]
		for _, m := range index {
			if m.ID != id {
				kept = append(kept, m)
			}
		}
		return s.saveIndex(kept)
	}
	return nil
}

// AddUserMessage appends a user message.
func (s *Store) AddUserMessage(id, content string) error {
	return s.appendMessage(id, Message{Role: "user", Content: &content})
}

// AppendTurn appends an assistant message holding the stage results of one
// turn. Stage 2/3 and metadata stay absent when the turn aborted after
// Stage 1.
func (s *Store) AppendTurn(id string, turn *council.TurnResult) error {
	msg := Message{Role: "assistant", Stage1: turn.Stage1}
	if !turn.Aborted {
		msg.Stage2 = turn.Stage2
		stage3 := turn.Stage3
		msg.Stage3 = &stage3
		metadata := turn.Metadata
		msg.Metadata = &metadata
	}
	return s.appendMessage(id, msg)
}

// AddErrorMessage records a failed turn so history stays continuous.
func (s *Store) AddErrorMessage(id, errorText string) error {
	return s.appendMessage(id, Message{
		Role:   "assistant",
		Error:  errorText,
		Stage1: []council.StageOneEntry{},
	})
}

// UpdateTitle sets a conversation's title.
func (s *Store) UpdateTitle(id, title string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	conv, err := s.load(id)
	if err != nil {
		return err
	}
	conv.Title = title
	return s.save(conv)
}

func (s *Store) appendMessage(id string, msg Message) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	conv, err := s.load(id)
	if err != nil {
		return err
	}
	conv.Messages = append(conv.Messages, msg)
	return s.save(conv)
}

func (s *Store) loadIndex() ([]Meta, error) {
	data, err := os.ReadFile(s.indexPath())
	if err != nil {
		return nil, err
	}
	var index []Meta
	if err := json.Unmarshal(data, &index); err != nil {
		return nil, err
	}
	return index, nil
}

func (s *Store) saveIndex(index []Meta) error {
	sort.Slice(index, func(i, j int) bool {
		return index[i].CreatedAt > index[j].CreatedAt
	})
	data, err := json.MarshalIndent(index, "", "  ")
	if err != nil {
		return fmt.Errorf("encoding index: %w", err)
	}
	if err := os.WriteFile(s.indexPath(), data, 0o644); err != nil {
		return fmt.Errorf("writing index: %w", err)
	}
	return nil
}

// rebuildIndex reconstructs the index by scanning conversation files.
func (s *Store) rebuildIndex() ([]Meta, error) {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return nil, fmt.Errorf("scanning data directory: %w", err)
	}

	index := []Meta{}
	for _, entry := range entries {
		name := entry.Name()
		if !strings.HasSuffix(name, ".json") || name == indexFileName {
			continue
		}
		conv, err := s.load(strings.TrimSuffix(name, ".json"))
		if err != nil {
			continue // skip unreadable files
		}
		index = append(index, Meta{
			ID:           conv.ID,
			CreatedAt:    conv.CreatedAt,
			Title:        conv.Title,
			MessageCount: len(conv.Messages),
		})
	}

	if err := s.saveIndex(index); err != nil {
		return nil, err
	}
	return index, nil
}

func (s *Store) updateIndexEntry(conv *Conversation) error {
	index, err := s.loadIndex()
	if err != nil {
		_, err := s.rebuildIndex()
		return err
	}

	kept := index[:0]
	for _, m := range index {
		if m.ID != conv.ID {
			kept = append(kept, m)
		}
	}
	kept = append(kept, Meta{
		ID:           conv.ID,
		CreatedAt:    conv.CreatedAt,
		Title:        conv.Title,
		MessageCount: len(conv.Messages),
	})
	return s.saveIndex(kept)
}
