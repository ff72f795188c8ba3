package playback

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/RuliLG/docc/internal/script"
)

// Options configure a presentation session.
type Options struct {
	Output        Output
	Synth         SynthesisClient
	SessionBase   string // base URL or directory under which session folders live
	SessionFolder string
	AutoPlay      bool
	AutoPlayDelay time.Duration
	Rate          float64
	Logger        *slog.Logger
}

// Session owns the playback machinery for a single document and a single
// viewer: resolver, controller, sequencer and auto-advance, created per
// presentation and discarded on Close. Nothing here is process-global.
type Session struct {
	doc      *script.Document
	resolver *Resolver
	ctrl     *Controller
	seq      *Sequencer
	advance  *AutoAdvance
	logger   *slog.Logger

	closeOnce sync.Once
	closed    chan struct{}
	wg        sync.WaitGroup
}

func NewSession(doc *script.Document, opts Options) (*Session, error) {
	if err := doc.Validate(); err != nil {
		return nil, err
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}

	s := &Session{
		doc:    doc,
		logger: logger.With(slog.String("component", "playback-session")),
		closed: make(chan struct{}),
	}
	s.resolver = NewResolver(opts.Output, opts.Synth, opts.SessionBase, logger)
	s.resolver.SetSessionFolder(opts.SessionFolder)
	s.ctrl = NewController(s.resolver, logger)
	if opts.Rate > 0 {
		if err := s.ctrl.SetRate(opts.Rate); err != nil {
			return nil, err
		}
	}
	s.seq = NewSequencer(doc)
	s.advance = NewAutoAdvance(s.seq, opts.AutoPlay, opts.AutoPlayDelay, s.autoPlay, logger)
	s.seq.SetInterrupt(func() {
		s.advance.Cancel()
		s.ctrl.Stop()
	})

	s.wg.Add(1)
	go s.loop()
	return s, nil
}

// loop forwards natural completions to the auto-advance controller until
// the session is closed.
func (s *Session) loop() {
	defer s.wg.Done()
	for {
		select {
		case comp := <-s.ctrl.Completions():
			s.advance.OnCompletion(comp.Index)
		case <-s.closed:
			return
		}
	}
}

// autoPlay consumes the one-shot auto-play intent raised by a fired advance
// timer.
func (s *Session) autoPlay(index int) {
	if err := s.ctrl.Play(context.Background(), s.doc, index); err != nil {
		s.logger.Warn("auto-play failed", slog.Int("block", index), slogError(err))
	}
}

// Play starts or resumes the current block.
func (s *Session) Play(ctx context.Context) error {
	index, _ := s.seq.Current()
	return s.ctrl.Play(ctx, s.doc, index)
}

func (s *Session) Pause() error { return s.ctrl.Pause() }

// Stop cancels any pending advance and resets playback.
func (s *Session) Stop() {
	s.advance.Cancel()
	s.ctrl.Stop()
}

func (s *Session) Next() int     { return s.seq.Next() }
func (s *Session) Previous() int { return s.seq.Previous() }
func (s *Session) ToStart() int  { return s.seq.ToStart() }

func (s *Session) SetRate(rate float64) error { return s.ctrl.SetRate(rate) }

func (s *Session) SetAutoPlay(enabled bool) { s.advance.SetEnabled(enabled) }

func (s *Session) SetAutoPlayDelay(d time.Duration) { s.advance.SetDelay(d) }

// SetSessionFolder switches the session to a different persisted audio
// directory: playback stops and every cache entry is discarded so no handle
// bound to the previous folder stays reachable.
func (s *Session) SetSessionFolder(folder string) {
	s.advance.Cancel()
	s.ctrl.Stop()
	s.resolver.SetSessionFolder(folder)
}

// Snapshot is the viewer-facing session state.
type Snapshot struct {
	Index         int
	Total         int
	Rate          float64
	IsPlaying     bool
	IsPaused      bool
	IsLoading     bool
	LastError     error
	AutoPlay      bool
	AutoPlayDelay time.Duration
	SessionFolder string
}

func (s *Session) Snapshot() Snapshot {
	state := s.ctrl.State()
	return Snapshot{
		Index:         s.seq.Index(),
		Total:         s.seq.Len(),
		Rate:          s.ctrl.Rate(),
		IsPlaying:     state == StatePlaying,
		IsPaused:      state == StatePaused,
		IsLoading:     state == StateLoading,
		LastError:     s.ctrl.LastError(),
		AutoPlay:      s.advance.Enabled(),
		AutoPlayDelay: s.advance.Delay(),
		SessionFolder: s.resolver.SessionFolder(),
	}
}

func (s *Session) Document() *script.Document { return s.doc }

func (s *Session) CurrentBlock() (int, script.Block) { return s.seq.Current() }

// Close tears the session down: pending timers are cancelled, playback
// stops and the completion loop exits.
func (s *Session) Close() {
	s.closeOnce.Do(func() {
		s.advance.Cancel()
		s.ctrl.Stop()
		close(s.closed)
		s.wg.Wait()
	})
}
