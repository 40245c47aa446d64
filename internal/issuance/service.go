// Package issuance orchestrates the two-step issue flow: prepare-issue hands
// out a session token with signer material, sign exchanges events plus the
// commitment for domestic strips and European certificates.
package issuance

import (
	"context"
	"encoding/base64"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"certo/internal/audit"
	"certo/internal/catalog"
	"certo/internal/distill"
	"certo/internal/domestic"
	"certo/internal/eusign"
	"certo/internal/events"
	"certo/internal/session"
	"certo/internal/signer"
	"certo/internal/ucilog"
	dErrors "certo/pkg/domain-errors"
	"certo/pkg/requestcontext"
)

// euSignParallelism caps concurrent calls to the European signer per request.
const euSignParallelism = 4

// DomesticSigner is the slice of the domestic signer client the service needs.
type DomesticSigner interface {
	PrepareIssue(ctx context.Context, credentialAmount int) (*signer.PrepareIssueResponse, error)
	Sign(ctx context.Context, prepareIssueMessage, issueCommitmentMessage []byte, attrs []domestic.Attributes) ([]byte, error)
	SignPaper(ctx context.Context, attrs domestic.Attributes) (string, error)
}

// EuropeanSigner signs one DGC message at a time.
type EuropeanSigner interface {
	Sign(ctx context.Context, msg eusign.ToSigner) (string, error)
}

// Service wires the issuance flow together.
type Service struct {
	sessions session.Store
	domestic DomesticSigner
	european EuropeanSigner
	pipeline *distill.Pipeline
	builder  *eusign.Builder
	catalog  *catalog.Catalog
	uciLog   ucilog.Store
	auditor  audit.Publisher
	logger   *slog.Logger
	metrics  *Metrics

	validity domestic.Validity
	layout   domestic.LayoutConfig
}

// NewService constructs the issuance service.
func NewService(
	sessions session.Store,
	domesticSigner DomesticSigner,
	europeanSigner EuropeanSigner,
	pipeline *distill.Pipeline,
	builder *eusign.Builder,
	cat *catalog.Catalog,
	uciLog ucilog.Store,
	auditor audit.Publisher,
	validity domestic.Validity,
	layout domestic.LayoutConfig,
	metrics *Metrics,
	logger *slog.Logger,
) *Service {
	return &Service{
		sessions: sessions,
		domestic: domesticSigner,
		european: europeanSigner,
		pipeline: pipeline,
		builder:  builder,
		catalog:  cat,
		uciLog:   uciLog,
		auditor:  auditor,
		logger:   logger,
		metrics:  metrics,
		validity: validity,
		layout:   layout,
	}
}

// PrepareIssueResponse is returned to the app; the message is the signer's
// prepare payload, base64-wrapped and otherwise untouched.
type PrepareIssueResponse struct {
	SToken              string `json:"stoken"`
	PrepareIssueMessage string `json:"prepareIssueMessage"`
}

// PrepareIssue obtains issuance material from the domestic signer and parks it
// in the session store under a fresh single-use token.
func (s *Service) PrepareIssue(ctx context.Context) (*PrepareIssueResponse, error) {
	amount := s.layout.CredentialAmount()
	material, err := s.domestic.PrepareIssue(ctx, amount)
	if err != nil {
		return nil, err
	}

	token, err := s.sessions.Put(ctx, session.State{
		PrepareIssueMessage: material.Raw,
		IssuerNonce:         material.IssuerNonce,
		CredentialAmount:    material.CredentialAmount,
	})
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "could not store session")
	}

	s.metrics.PreparesTotal.Inc()
	return &PrepareIssueResponse{
		SToken:              token.String(),
		PrepareIssueMessage: base64.StdEncoding.EncodeToString(material.Raw),
	}, nil
}

// SignRequest is the app's sign call.
type SignRequest struct {
	Events                 []events.SignedBlob `json:"events"`
	SToken                 string              `json:"stoken"`
	IssueCommitmentMessage string              `json:"issueCommitmentMessage"`
}

// DomesticGreencard carries the strip credentials and their origins.
type DomesticGreencard struct {
	Origins                  []domestic.OriginResponse `json:"origins"`
	CreateCredentialMessages string                    `json:"createCredentialMessages"`
}

// EUGreencard carries one signed European certificate and its origin.
type EUGreencard struct {
	Origins    []eusign.Origin `json:"origins"`
	Credential string          `json:"credential"`
}

// SignResponse is the composed issuance result.
type SignResponse struct {
	DomesticGreencard *DomesticGreencard `json:"domesticGreencard"`
	EUGreencards      []EUGreencard      `json:"euGreencards"`
}

// Sign runs the full credential path: consume the session, decode and merge
// the provider events, distill, then fan out to both signers.
func (s *Service) Sign(ctx context.Context, req SignRequest) (*SignResponse, error) {
	state, err := s.consumeSession(ctx, req.SToken)
	if err != nil {
		return nil, err
	}

	commitment, err := base64.StdEncoding.DecodeString(req.IssueCommitmentMessage)
	if err != nil {
		return nil, dErrors.NewValidation(dErrors.Detail{
			Loc:  []string{"issueCommitmentMessage"},
			Msg:  "invalid base64",
			Type: "value_error",
		})
	}

	results, details := events.Decode(req.Events)
	if len(details) > 0 {
		return nil, &dErrors.ValidationError{Details: details}
	}

	merged, err := events.Merge(results)
	if err != nil {
		return nil, err
	}
	if len(merged) == 0 {
		return nil, dErrors.New(dErrors.CodeNothingToIssue, "no usable events")
	}
	now := requestcontext.Now(ctx)

	euGreencards, messages, err := s.signEuropean(ctx, merged, now)
	if err != nil {
		return nil, err
	}

	domGreencard, strips, err := s.signDomestic(ctx, merged, now, state, commitment)
	if err != nil {
		return nil, err
	}

	if domGreencard == nil && len(euGreencards) == 0 {
		return nil, dErrors.New(dErrors.CodeNothingToIssue, "no credentials could be issued")
	}

	s.record(ctx, messages, strips, merged)
	return &SignResponse{DomesticGreencard: domGreencard, EUGreencards: euGreencards}, nil
}

func (s *Service) consumeSession(ctx context.Context, stoken string) (session.State, error) {
	token, err := uuid.Parse(stoken)
	if err != nil {
		return session.State{}, dErrors.New(dErrors.CodeInvalidSession, "invalid session")
	}
	state, err := s.sessions.Take(ctx, token)
	if err == session.ErrNotFound {
		return session.State{}, dErrors.New(dErrors.CodeInvalidSession, "invalid session")
	}
	if err != nil {
		return session.State{}, dErrors.Wrap(err, dErrors.CodeInternal, "session lookup failed")
	}
	return state, nil
}

// signEuropean distills for Europe, builds one message per event, and signs
// them in parallel. Result order follows event order, not signer arrival.
func (s *Service) signEuropean(ctx context.Context, merged events.Events, now time.Time) ([]EUGreencard, []eusign.Message, error) {
	euEvents := s.pipeline.DistillForEurope(ctx, merged, now)
	messages, err := s.builder.Build(ctx, euEvents, now)
	if err != nil {
		return nil, nil, dErrors.Wrap(err, dErrors.CodeInternal, "could not build european messages")
	}
	if len(messages) == 0 {
		return nil, nil, nil
	}

	greencards := make([]EUGreencard, len(messages))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(euSignParallelism)
	for i, msg := range messages {
		g.Go(func() error {
			credential, err := s.european.Sign(gctx, msg.ToSigner)
			if err != nil {
				return err
			}
			greencards[i] = EUGreencard{
				Origins:    []eusign.Origin{msg.Origin},
				Credential: credential,
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, nil, err
	}
	s.metrics.EuropeanIssued.Add(float64(len(greencards)))
	return greencards, messages, nil
}

func (s *Service) signDomestic(ctx context.Context, merged events.Events, now time.Time, state session.State, commitment []byte) (*DomesticGreencard, []domestic.Strip, error) {
	domEvents := s.pipeline.Distill(ctx, merged, now)
	if len(domEvents) == 0 {
		return nil, nil, nil
	}

	origins := domestic.BuildRichOrigins(domEvents, s.validity)
	blocks := domestic.GroupContiguous(origins)
	strips := domestic.Layout(blocks, now, s.layout, nil)
	if len(strips) == 0 {
		return nil, nil, nil
	}
	if len(strips) > state.CredentialAmount && state.CredentialAmount > 0 {
		strips = strips[:state.CredentialAmount]
	}

	h := domEvents[0].Holder
	attrs := make([]domestic.Attributes, 0, len(strips))
	for _, strip := range strips {
		attrs = append(attrs, domestic.BuildAttributes(strip, h, domestic.ProofApp, s.catalog))
	}

	blob, err := s.domestic.Sign(ctx, state.PrepareIssueMessage, commitment, attrs)
	if err != nil {
		return nil, nil, err
	}

	s.metrics.StripsIssued.Add(float64(len(strips)))
	return &DomesticGreencard{
		Origins:                  domestic.OriginResponses(origins),
		CreateCredentialMessages: base64.StdEncoding.EncodeToString(blob),
	}, strips, nil
}

// SignPaper issues a single long-lived paper QR for the given events.
func (s *Service) SignPaper(ctx context.Context, blobs []events.SignedBlob) (string, error) {
	results, details := events.Decode(blobs)
	if len(details) > 0 {
		return "", &dErrors.ValidationError{Details: details}
	}
	merged, err := events.Merge(results)
	if err != nil {
		return "", err
	}
	now := requestcontext.Now(ctx)
	domEvents := s.pipeline.Distill(ctx, merged, now)
	if len(domEvents) == 0 {
		return "", dErrors.New(dErrors.CodeNothingToIssue, "no usable events")
	}

	origins := domestic.BuildRichOrigins(domEvents, s.validity)
	blocks := domestic.GroupContiguous(origins)
	strips := domestic.Layout(blocks, now, s.layout, nil)
	if len(strips) == 0 {
		return "", dErrors.New(dErrors.CodeNothingToIssue, "no valid window")
	}

	attrs := domestic.BuildAttributes(strips[0], domEvents[0].Holder, domestic.ProofPaperLong, s.catalog)
	return s.domestic.SignPaper(ctx, attrs)
}

// record appends the UCI log entries and emits audit records. Neither may
// fail the request; problems are logged.
func (s *Service) record(ctx context.Context, messages []eusign.Message, strips []domestic.Strip, merged events.Events) {
	requestID := requestcontext.RequestID(ctx)
	now := requestcontext.Now(ctx)

	for _, msg := range messages {
		rec := ucilog.Record{
			Provider: msg.Provider,
			Unique:   msg.Unique,
			UCI:      msg.UCI,
			IssuedAt: now,
		}
		if err := s.uciLog.Append(ctx, rec); err != nil {
			s.logger.ErrorContext(ctx, "uci log append failed",
				"uci", msg.UCI, "error", err)
		}
		s.auditor.Publish(ctx, audit.Record{
			RequestID: requestID,
			Provider:  msg.Provider,
			Unique:    msg.Unique,
			UCI:       msg.UCI,
			Kind:      audit.KindEuropean,
			IssuedAt:  now,
		})
	}

	if len(strips) > 0 && len(merged) > 0 {
		s.auditor.Publish(ctx, audit.Record{
			RequestID:  requestID,
			Provider:   merged[0].Provider,
			Unique:     merged[0].Unique,
			Kind:       audit.KindDomestic,
			IsSpecimen: strips[0].IsSpecimen,
			IssuedAt:   now,
		})
	}
}
