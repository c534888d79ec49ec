package service

import (
	"context"
	"database/sql"
	"errors"
	"log/slog"

	"github.com/go-playground/validator/v10"

	"github.com/segyhp/jaryq-library/internal/domain"
	"github.com/segyhp/jaryq-library/internal/repository"
	customError "github.com/segyhp/jaryq-library/pkg/errors"
	"github.com/segyhp/jaryq-library/pkg/utils"
	"github.com/segyhp/jaryq-library/pkg/validation"
)

type cardQuery struct {
	CardNumber string `validate:"required,max=12"`
}

// MemberService owns library members and their card numbers
type MemberService struct {
	MemberRepo  repository.MemberRepository
	emitter     EventEmitter
	random      utils.RandomSource
	maxAttempts int
	validate    *validator.Validate
}

func NewMemberService(
	memberRepo repository.MemberRepository,
	emitter EventEmitter,
	random utils.RandomSource,
	maxAttempts int,
) *MemberService {
	return &MemberService{
		MemberRepo:  memberRepo,
		emitter:     emitter,
		random:      random,
		maxAttempts: maxAttempts,
		validate:    validation.New(),
	}
}

func (s *MemberService) FetchByCardNumber(ctx context.Context, cardNumber string) (*domain.Member, error) {
	if err := s.check(cardQuery{CardNumber: cardNumber}); err != nil {
		return nil, err
	}
	member, err := s.MemberRepo.FindByCardNumber(ctx, cardNumber)
	return memberOrNotFound(member, err, "cardNumber", cardNumber)
}

func (s *MemberService) FetchByIIN(ctx context.Context, iin string) (*domain.Member, error) {
	if err := s.check(domain.MemberQuery{MemberIIN: iin}); err != nil {
		return nil, err
	}
	member, err := s.MemberRepo.FindByIIN(ctx, iin)
	return memberOrNotFound(member, err, "iin", iin)
}

// Create registers a member under a freshly drawn card number and announces
// it on member-created.
func (s *MemberService) Create(ctx context.Context, member *domain.Member) (*domain.Member, error) {
	member.CardNumber = ""
	member.CommunicationStatus = false
	if err := s.check(member); err != nil {
		return nil, err
	}

	_, err := s.MemberRepo.FindByIIN(ctx, member.IIN)
	if err == nil {
		return nil, customError.WrapAlreadyExists("Member", "iin", member.IIN)
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return nil, customError.WrapDatabaseError(err)
	}

	cardNumber, err := utils.GenerateCardNumber(ctx, s.random, s.MemberRepo.ExistsByCardNumber, s.maxAttempts)
	if err != nil {
		return nil, customError.WrapDatabaseError(err)
	}
	member.CardNumber = cardNumber

	if err := s.MemberRepo.Create(ctx, member); err != nil {
		return nil, storeError(err)
	}

	s.emitter.Emit(ctx, domain.TopicMemberCreated, domain.NewMemberMessage(member))
	slog.InfoContext(ctx, "member created", "card_number", member.CardNumber, "iin", member.IIN)

	return member, nil
}

// Update rewrites name and contact details of the member found by IIN and
// returns the stored member.
func (s *MemberService) Update(ctx context.Context, member *domain.Member) (*domain.Member, error) {
	if err := s.check(member); err != nil {
		return nil, err
	}

	updated, err := s.MemberRepo.Update(ctx, member)
	if err != nil {
		return nil, customError.WrapDatabaseError(err)
	}
	if !updated {
		return nil, customError.WrapNotFound("Member", "iin", member.IIN)
	}

	slog.InfoContext(ctx, "member updated", "iin", member.IIN)

	stored, err := s.MemberRepo.FindByIIN(ctx, member.IIN)
	return memberOrNotFound(stored, err, "iin", member.IIN)
}

func (s *MemberService) DeleteByCardNumber(ctx context.Context, cardNumber string) error {
	if err := s.check(cardQuery{CardNumber: cardNumber}); err != nil {
		return err
	}
	deleted, err := s.MemberRepo.DeleteByCardNumber(ctx, cardNumber)
	return deletedOrNotFound(ctx, deleted, err, "cardNumber", cardNumber)
}

func (s *MemberService) DeleteByIIN(ctx context.Context, iin string) error {
	if err := s.check(domain.MemberQuery{MemberIIN: iin}); err != nil {
		return err
	}
	deleted, err := s.MemberRepo.DeleteByIIN(ctx, iin)
	return deletedOrNotFound(ctx, deleted, err, "iin", iin)
}

// UpdateCommunicationStatus records that the member was notified
func (s *MemberService) UpdateCommunicationStatus(ctx context.Context, ack domain.MemberCommunication) error {
	updated, err := s.MemberRepo.MarkCommunicated(ctx, ack.MemberIIN)
	if err != nil {
		return customError.WrapDatabaseError(err)
	}
	if !updated {
		return customError.WrapNotFound("Member", "iin", ack.MemberIIN)
	}
	return nil
}

func (s *MemberService) check(v interface{}) error {
	if err := s.validate.Struct(v); err != nil {
		return customError.WrapValidation(errors.New(validation.Message(err)))
	}
	return nil
}

func memberOrNotFound(member *domain.Member, err error, field, value string) (*domain.Member, error) {
	if errors.Is(err, sql.ErrNoRows) {
		return nil, customError.WrapNotFound("Member", field, value)
	}
	if err != nil {
		return nil, customError.WrapDatabaseError(err)
	}
	return member, nil
}

func deletedOrNotFound(ctx context.Context, deleted bool, err error, field, value string) error {
	if err != nil {
		return customError.WrapDatabaseError(err)
	}
	if !deleted {
		return customError.WrapNotFound("Member", field, value)
	}
	slog.InfoContext(ctx, "member deleted", field, value)
	return nil
}
