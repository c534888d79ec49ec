package domain

// Event topics
const (
	TopicLoanCreated         = "loan-created"
	TopicLoanDue             = "loan-due"
	TopicMemberCreated       = "member-created"
	TopicLoanCommunication   = "loan-communication"
	TopicMemberCommunication = "member-communication"
)

// LoanMessage is the payload of loan-created and loan-due events
type LoanMessage struct {
	CardNumber     string `json:"cardNumber"`
	MemberFullName string `json:"memberFullName"`
	MemberIIN      string `json:"memberIin"`
	MobileNumber   string `json:"mobileNumber"`
	Email          string `json:"email"`
	BookName       string `json:"bookName"`
	BookISBN       string `json:"bookIsbn"`
	LoanDate       Date   `json:"loanDate"`
	DueDate        Date   `json:"dueDate"`
}

// MemberMessage is the payload of member-created events
type MemberMessage struct {
	CardNumber     string `json:"cardNumber"`
	MemberFullName string `json:"memberFullName"`
	MemberIIN      string `json:"memberIin"`
	MobileNumber   string `json:"mobileNumber"`
	Email          string `json:"email"`
}

// LoanCommunication acknowledges that a loan notification was delivered
type LoanCommunication struct {
	BookISBN  string `json:"bookIsbn"`
	MemberIIN string `json:"memberIin"`
}

// MemberCommunication acknowledges that a member notification was delivered
type MemberCommunication struct {
	MemberIIN string `json:"memberIin"`
}

func NewLoanMessage(loan *Loan, book *Book, member *Member) LoanMessage {
	return LoanMessage{
		CardNumber:     member.CardNumber,
		MemberFullName: member.FullName(),
		MemberIIN:      member.IIN,
		MobileNumber:   member.MobileNumber,
		Email:          member.Email,
		BookName:       book.Title,
		BookISBN:       book.ISBN,
		LoanDate:       DateOf(loan.LoanDate),
		DueDate:        DateOf(loan.DueDate),
	}
}

func NewMemberMessage(member *Member) MemberMessage {
	return MemberMessage{
		CardNumber:     member.CardNumber,
		MemberFullName: member.FullName(),
		MemberIIN:      member.IIN,
		MobileNumber:   member.MobileNumber,
		Email:          member.Email,
	}
}
