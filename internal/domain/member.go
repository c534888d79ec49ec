package domain

import (
	"time"

	"github.com/segyhp/jaryq-library/pkg/utils"
)

// Member is owned by the members service. Contact details travel unmasked
// between services and are masked only in MemberView.
type Member struct {
	CardNumber          string    `json:"cardNumber" db:"card_number" validate:"omitempty,max=12"`
	FirstName           string    `json:"firstName" db:"first_name" validate:"required,max=255"`
	LastName            string    `json:"lastName" db:"last_name" validate:"required,max=255"`
	IIN                 string    `json:"iin" db:"iin" validate:"required,max=12"`
	Email               string    `json:"email" db:"email" validate:"required,email,max=254"`
	MobileNumber        string    `json:"mobileNumber" db:"mobile_number" validate:"required,mobile"`
	Address             string    `json:"address" db:"address" validate:"required,max=255"`
	CommunicationStatus bool      `json:"communicationStatus" db:"communication_status"`
	CreatedAt           time.Time `json:"-" db:"created_at"`
	UpdatedAt           time.Time `json:"-" db:"updated_at"`
}

// MemberView is the display projection embedded in loan responses
type MemberView struct {
	CardNumber   string `json:"cardNumber"`
	FullName     string `json:"fullName"`
	IIN          string `json:"iin"`
	Email        string `json:"email"`
	MobileNumber string `json:"mobileNumber"`
}

func (m *Member) FullName() string {
	return utils.FullName(m.FirstName, m.LastName)
}

func (m *Member) View() *MemberView {
	return &MemberView{
		CardNumber:   m.CardNumber,
		FullName:     m.FullName(),
		IIN:          m.IIN,
		Email:        utils.MaskEmail(m.Email),
		MobileNumber: utils.MaskPhone(m.MobileNumber),
	}
}
