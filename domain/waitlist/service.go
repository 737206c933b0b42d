package waitlist

import (
	"context"
	"regexp"
	"strings"
	"time"
	"unicode"

	"github.com/akeren/waitlist-intake/internal/log"
	"github.com/akeren/waitlist-intake/pkg/constants"
	apperrors "github.com/akeren/waitlist-intake/pkg/errors"
	"github.com/go-playground/validator/v10"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// Any whitespace, including the Unicode space separators, breaks a part.
const notSpaceOrAt = `[^\s\v\p{Z}\x{FEFF}@]`

var emailPattern = regexp.MustCompile(`^` + notSpaceOrAt + `+@` + notSpaceOrAt + `+\.` + notSpaceOrAt + `+$`)

var tracer = otel.Tracer("github.com/akeren/waitlist-intake/domain/waitlist")

type WaitlistService interface {
	// Submit runs one submission through the honeypot, normalization,
	// validation and the idempotent insert.
	Submit(ctx context.Context, req *SubmitRequest, meta SubmissionMeta) (*SubmitResult, error)
}

type Option func(*waitlistService)

// WithClock replaces time.Now for created_at.
func WithClock(now func() time.Time) Option {
	return func(s *waitlistService) { s.now = now }
}

func WithOutcomeRecorder(r OutcomeRecorder) Option {
	return func(s *waitlistService) {
		if r != nil {
			s.recorder = r
		}
	}
}

type waitlistService struct {
	logger     *log.Logger
	repository WaitlistRepository
	validate   *validator.Validate
	recorder   OutcomeRecorder
	now        func() time.Time
}

func NewWaitlistService(logger *log.Logger, repository WaitlistRepository, opts ...Option) WaitlistService {
	s := &waitlistService{
		logger:     logger,
		repository: repository,
		validate:   newValidator(),
		recorder:   noopRecorder{},
		now:        time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	if err := v.RegisterValidation("waitlist_email", func(fl validator.FieldLevel) bool {
		return IsValidEmail(fl.Field().String())
	}); err != nil {
		panic(err)
	}
	return v
}

// IsValidEmail checks the shape local@domain.tld with no whitespace or
// extra "@" in any part.
func IsValidEmail(email string) bool {
	return emailPattern.MatchString(email)
}

// NormalizeEmail trims and lower-cases an address.
func NormalizeEmail(raw string) string {
	return cases.Lower(language.Und).String(trimSpace(raw))
}

// NormalizeSource trims the tag and substitutes the default when empty.
func NormalizeSource(raw string) string {
	if s := trimSpace(raw); s != "" {
		return s
	}
	return constants.DefaultWaitlistSource
}

// trimSpace strips unicode.IsSpace runes and U+FEFF. U+0085 is kept.
func trimSpace(s string) string {
	return strings.TrimFunc(s, func(r rune) bool {
		return (unicode.IsSpace(r) && r != '\u0085') || r == '\uFEFF'
	})
}

func (s *waitlistService) Submit(ctx context.Context, req *SubmitRequest, meta SubmissionMeta) (*SubmitResult, error) {
	ctx, span := tracer.Start(ctx, "waitlist.Submit")
	defer span.End()

	logger := log.GetLoggerInstanceFromContext(ctx, s.logger)

	result, err := s.submit(ctx, logger, req, meta)

	outcome := OutcomeStoreError
	switch {
	case err == nil:
		outcome = result.Outcome
	case apperrors.GetErrorType(err) == apperrors.ErrorTypeInvalidPayload:
		outcome = OutcomeInvalidPayload
	case apperrors.GetErrorType(err) == apperrors.ErrorTypeInvalidEmail:
		outcome = OutcomeInvalidEmail
	}

	s.recorder.Record(outcome)
	span.SetAttributes(attribute.String("waitlist.outcome", string(outcome)))
	if err != nil && outcome == OutcomeStoreError {
		span.RecordError(err)
		span.SetStatus(codes.Error, "store error")
	}

	return result, err
}

func (s *waitlistService) submit(ctx context.Context, logger *log.Logger, req *SubmitRequest, meta SubmissionMeta) (*SubmitResult, error) {
	if req == nil {
		logger.Warn("Submission without a payload")
		return nil, apperrors.NewInvalidPayloadError(nil)
	}

	if trimSpace(req.HP) != "" {
		logger.Info("Honeypot filled; submission dropped", "client_ip", meta.ClientIP)
		return &SubmitResult{Outcome: OutcomeHoneypot}, nil
	}

	normalized := SubmitRequest{
		Email:  NormalizeEmail(req.Email),
		Source: NormalizeSource(req.Source),
	}

	if err := s.validate.Struct(&normalized); err != nil {
		logger.Info("Submission rejected",
			"reason", "invalid email",
			"details", apperrors.FormatValidationErrors(err, &normalized),
		)
		return nil, apperrors.NewInvalidEmailError(err)
	}

	entry := ToWaitlistEntryModel(
		normalized.Email,
		normalized.Source,
		meta,
		s.now().UTC().Format(constants.ISO8601MillisUTCFormat),
	)

	inserted, err := s.repository.InsertEntry(ctx, entry)
	if err != nil {
		logger.Error("Failed to store waitlist entry", "error", err)
		return nil, apperrors.NewDatabaseError(err)
	}

	if !inserted {
		logger.Info("Waitlist entry already present", "source", normalized.Source)
		return &SubmitResult{Outcome: OutcomeDuplicate}, nil
	}

	logger.Info("Waitlist entry stored", "source", normalized.Source)
	return &SubmitResult{Outcome: OutcomeAccepted}, nil
}
