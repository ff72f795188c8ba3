package script

import (
	"encoding/json"
	"errors"
	"fmt"
)

// BlockType discriminates the two script block variants.
type BlockType string

const (
	BlockText BlockType = "text"
	BlockCode BlockType = "code"
)

// LineRange is a 1-based inclusive range of lines in a source file. The wire
// format accepts three shapes: {"from","to"}, {"from_line","to_line"} and
// {"line"} for a single line.
type LineRange struct {
	From int
	To   int
}

type lineRangeWire struct {
	From     *int `json:"from,omitempty"`
	To       *int `json:"to,omitempty"`
	FromLine *int `json:"from_line,omitempty"`
	ToLine   *int `json:"to_line,omitempty"`
	Line     *int `json:"line,omitempty"`
}

func (r *LineRange) UnmarshalJSON(data []byte) error {
	var wire lineRangeWire
	if err := json.Unmarshal(data, &wire); err != nil {
		return err
	}
	switch {
	case wire.Line != nil:
		r.From, r.To = *wire.Line, *wire.Line
	case wire.From != nil || wire.To != nil:
		r.From = valueOr(wire.From, wire.To)
		r.To = valueOr(wire.To, wire.From)
	case wire.FromLine != nil || wire.ToLine != nil:
		r.From = valueOr(wire.FromLine, wire.ToLine)
		r.To = valueOr(wire.ToLine, wire.FromLine)
	default:
		return errors.New("line range requires from/to, from_line/to_line or line")
	}
	if r.From < 1 {
		return fmt.Errorf("line range start %d must be >= 1", r.From)
	}
	if r.To < r.From {
		return fmt.Errorf("line range end %d precedes start %d", r.To, r.From)
	}
	return nil
}

func (r LineRange) MarshalJSON() ([]byte, error) {
	if r.From == r.To {
		return json.Marshal(lineRangeWire{Line: &r.From})
	}
	return json.Marshal(lineRangeWire{From: &r.From, To: &r.To})
}

func valueOr(primary, fallback *int) int {
	if primary != nil {
		return *primary
	}
	if fallback != nil {
		return *fallback
	}
	return 0
}

// Block is one unit of the presentation. Text blocks carry only markdown;
// code blocks add a source file and the line ranges to highlight. AudioFile
// is a session-local narration filename set when a session is persisted.
type Block struct {
	Type          BlockType   `json:"type"`
	Markdown      string      `json:"markdown"`
	File          string      `json:"file,omitempty"`
	RelevantLines []LineRange `json:"relevant_lines,omitempty"`
	AudioFile     string      `json:"audio_file,omitempty"`
}

// Narration returns the text spoken for the block.
func (b Block) Narration() string { return b.Markdown }

func (b Block) Validate() error {
	switch b.Type {
	case BlockText:
		if b.Markdown == "" {
			return errors.New("text block requires markdown")
		}
	case BlockCode:
		if b.File == "" {
			return errors.New("code block requires file")
		}
		if b.Markdown == "" {
			return errors.New("code block requires markdown")
		}
	default:
		return fmt.Errorf("unknown block type %q", b.Type)
	}
	return nil
}

// Document is a generated presentation script. AudioFiles, when present, is
// index-aligned with Script; nil entries mean no pre-generated audio for that
// block. Documents are immutable once parsed.
type Document struct {
	RepositoryPath string    `json:"repository_path"`
	Question       string    `json:"question"`
	Script         []Block   `json:"script"`
	AudioFiles     []*string `json:"audio_files,omitempty"`
}

func Parse(data []byte) (*Document, error) {
	var doc Document
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("parse script document: %w", err)
	}
	if err := doc.Validate(); err != nil {
		return nil, err
	}
	return &doc, nil
}

func (d *Document) Validate() error {
	if len(d.Script) == 0 {
		return errors.New("script must contain at least one block")
	}
	for i, b := range d.Script {
		if err := b.Validate(); err != nil {
			return fmt.Errorf("block %d: %w", i, err)
		}
	}
	if d.AudioFiles != nil && len(d.AudioFiles) != len(d.Script) {
		return fmt.Errorf("audio_files length %d does not match script length %d", len(d.AudioFiles), len(d.Script))
	}
	return nil
}

// AudioURL returns the pre-generated audio locator for the block at index i,
// if one exists.
func (d *Document) AudioURL(i int) (string, bool) {
	if i < 0 || i >= len(d.AudioFiles) {
		return "", false
	}
	if d.AudioFiles[i] == nil || *d.AudioFiles[i] == "" {
		return "", false
	}
	return *d.AudioFiles[i], true
}

func (d *Document) Len() int { return len(d.Script) }

func (d *Document) Block(i int) Block { return d.Script[i] }
