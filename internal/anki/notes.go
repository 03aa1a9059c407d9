package anki

import (
	"context"
	"encoding/json/v2"
	"fmt"
)

// frontFieldName is the field the Cloze and Basic models expose for the
// card front.
const frontFieldName = "Text"

// NoteField is one field of a remote note.
type NoteField struct {
	Value string `json:"value"`
	Order int    `json:"order"`
}

// NoteInfo describes one remote note. AnkiConnect reports an unknown note
// ID as an empty object, so a zero NoteID means the note does not exist.
type NoteInfo struct {
	NoteID    int64                `json:"noteId"`
	ModelName string               `json:"modelName"`
	Tags      []string             `json:"tags"`
	Fields    map[string]NoteField `json:"fields"`
}

// Missing reports whether the remote note does not exist.
func (n NoteInfo) Missing() bool {
	return n.NoteID == 0
}

// NewNote is the payload for creating a remote note.
type NewNote struct {
	DeckName  string
	ModelName string
	Front     string
	Tags      []string
}

// Probe checks that AnkiConnect is reachable and returns the API version it
// speaks.
func (c *Client) Probe(ctx context.Context) (int, error) {
	result, err := c.invoke(ctx, "version", nil)
	if err != nil {
		return 0, err
	}

	var version int
	if err := json.Unmarshal(result, &version); err != nil {
		return 0, &ProtocolError{Op: "version", Reason: fmt.Sprintf("parse result: %v", err)}
	}
	return version, nil
}

// NotesInfo fetches remote state for the given note IDs in one batch. The
// result has exactly one entry per requested ID, in request order; entries
// for unknown IDs report Missing. A zero ID means the card was never
// created remotely and goes on the wire as null, which AnkiConnect answers
// with an empty object.
func (c *Client) NotesInfo(ctx context.Context, noteIDs []int64) ([]NoteInfo, error) {
	notes := make([]*int64, len(noteIDs))
	for i := range noteIDs {
		if noteIDs[i] != 0 {
			notes[i] = &noteIDs[i]
		}
	}

	params := struct {
		Notes []*int64 `json:"notes"`
	}{Notes: notes}

	result, err := c.invoke(ctx, "notesInfo", params)
	if err != nil {
		return nil, err
	}

	var infos []NoteInfo
	if err := json.Unmarshal(result, &infos); err != nil {
		return nil, &ProtocolError{Op: "notesInfo", Reason: fmt.Sprintf("parse result: %v", err)}
	}
	if len(infos) != len(noteIDs) {
		return nil, &ProtocolError{
			Op:     "notesInfo",
			Reason: fmt.Sprintf("requested %d notes, got %d", len(noteIDs), len(infos)),
		}
	}
	return infos, nil
}

// AddNote creates a remote note and returns its ID.
func (c *Client) AddNote(ctx context.Context, note NewNote) (int64, error) {
	tags := note.Tags
	if tags == nil {
		tags = []string{}
	}

	params := struct {
		Note struct {
			DeckName  string            `json:"deckName"`
			ModelName string            `json:"modelName"`
			Fields    map[string]string `json:"fields"`
			Options   struct {
				AllowDuplicate bool `json:"allowDuplicate"`
			} `json:"options"`
			Tags []string `json:"tags"`
		} `json:"note"`
	}{}
	params.Note.DeckName = note.DeckName
	params.Note.ModelName = note.ModelName
	params.Note.Fields = map[string]string{frontFieldName: note.Front}
	params.Note.Tags = tags

	result, err := c.invoke(ctx, "addNote", params)
	if err != nil {
		return 0, err
	}

	var noteID int64
	if err := json.Unmarshal(result, &noteID); err != nil {
		return 0, &ProtocolError{Op: "addNote", Reason: fmt.Sprintf("parse result: %v", err)}
	}
	return noteID, nil
}

// UpdateNoteFields replaces the front field of an existing remote note.
func (c *Client) UpdateNoteFields(ctx context.Context, noteID int64, front string) error {
	if noteID == 0 {
		return ErrMissingNoteID
	}

	params := struct {
		Note struct {
			ID     int64             `json:"id"`
			Fields map[string]string `json:"fields"`
		} `json:"note"`
	}{}
	params.Note.ID = noteID
	params.Note.Fields = map[string]string{frontFieldName: front}

	_, err := c.invoke(ctx, "updateNoteFields", params)
	return err
}
