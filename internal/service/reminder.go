package service

import (
	"context"
	"log/slog"

	"github.com/segyhp/jaryq-library/internal/domain"
	customError "github.com/segyhp/jaryq-library/pkg/errors"
	"github.com/segyhp/jaryq-library/pkg/utils"
)

// RemindDueToday emits loan-due for every BORROWED loan whose due date is
// today, the only day it can be extended. Loans whose book or member cannot
// be resolved are skipped. Returns the number of reminders emitted.
func (s *LoanService) RemindDueToday(ctx context.Context) (int, error) {
	today := utils.StartOfDay(s.clock.Now())

	loans, err := s.LoanRepo.FindDueOn(ctx, today)
	if err != nil {
		return 0, customError.WrapDatabaseError(err)
	}

	sent := 0
	for _, loan := range loans {
		book, member, err := s.resolve(ctx, loan.BookISBN, loan.MemberIIN)
		if err != nil {
			slog.WarnContext(ctx, "skipping due reminder",
				"loan_id", loan.ID,
				"book_isbn", loan.BookISBN,
				"member_iin", loan.MemberIIN,
				"error", err,
			)
			continue
		}

		s.emitter.Emit(ctx, domain.TopicLoanDue, domain.NewLoanMessage(loan, book, member))
		sent++
	}

	slog.InfoContext(ctx, "due reminders emitted", "due_date", today.Format("2006-01-02"), "count", sent, "due", len(loans))
	return sent, nil
}
