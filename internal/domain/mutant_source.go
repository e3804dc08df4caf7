package domain

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	"mutflow.dev/pkg/mutflow/internal/adapter"
	m "mutflow.dev/pkg/mutflow/internal/model"
)

var validate = validator.New(validator.WithRequiredStructEnabled())

// mutantNamespace seeds the name-based UUIDs of generated mutants.
var mutantNamespace = uuid.NewSHA1(uuid.NameSpaceURL, []byte("https://mutflow.dev/mutant"))

// MutantID derives a stable ID from the target file and the edit, so the same
// edit of the same file always gets the same ID.
func MutantID(target m.Location, original, mutated string) string {
	key := target.RelPath() + "\x00" + original + "\x00" + mutated
	return uuid.NewSHA1(mutantNamespace, []byte(key)).String()
}

// MutantName is the human-readable name of the n-th mutant of a class.
func MutantName(target m.Location, n int) string {
	return fmt.Sprintf("%s_Mutant_%d", target.ClassName, n)
}

// MutantSource lazily produces the mutants of one project version. The channel
// closes when the source is exhausted or ctx is cancelled. Every read of the
// workspace happens before the first mutant is sent, so the caller may mutate
// and reset ws while consuming the stream.
type MutantSource interface {
	Name() string
	Stream(ctx context.Context, ws Workspace) <-chan m.Mutant
}

type fileSource struct {
	store   adapter.MutantStore
	path    m.Path
	metrics *adapter.Metrics
}

// NewFileSource replays a batch previously written by the generate workflow.
func NewFileSource(store adapter.MutantStore, path m.Path, metrics *adapter.Metrics) MutantSource {
	return &fileSource{store: store, path: path, metrics: metrics}
}

func (s *fileSource) Name() string {
	return "file:" + string(s.path)
}

func (s *fileSource) Stream(ctx context.Context, _ Workspace) <-chan m.Mutant {
	ch := make(chan m.Mutant, 1)

	go func() {
		defer close(ch)

		file, err := s.store.LoadMutants(ctx, s.path)
		if err != nil {
			slog.Error("Failed to load mutants", "path", s.path, "error", err)
			return
		}

		for _, mutant := range file.Mutants {
			if err := validateMutant(mutant); err != nil {
				slog.Warn("Skipping invalid mutant", "path", s.path, "mutant", mutant.ID, "error", err)
				s.metrics.ObserveRejected("invalid_record")

				continue
			}

			if !sendMutant(ctx, ch, mutant) {
				return
			}
		}
	}()

	return ch
}

func validateMutant(mutant m.Mutant) error {
	if err := validate.Struct(mutant); err != nil {
		return err
	}

	return mutant.Target.Validate()
}

// sendMutant delivers mutant unless ctx is cancelled first.
func sendMutant(ctx context.Context, ch chan<- m.Mutant, mutant m.Mutant) bool {
	select {
	case <-ctx.Done():
		return false
	case ch <- mutant:
		return true
	}
}
