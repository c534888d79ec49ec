package domain

import "time"

// Book is owned by the books service. The loans service only reads it.
type Book struct {
	ID              int64     `json:"-" db:"id"`
	Title           string    `json:"title" db:"title" validate:"required,max=255"`
	Author          string    `json:"author" db:"author" validate:"required,max=255"`
	Genre           string    `json:"genre" db:"genre" validate:"required,max=30"`
	ISBN            string    `json:"isbn" db:"isbn" validate:"required,isbn13digits"`
	TotalCopies     int       `json:"totalCopies" db:"total_copies" validate:"gt=0"`
	AvailableCopies int       `json:"availableCopies" db:"available_copies" validate:"gte=0,ltefield=TotalCopies"`
	CreatedAt       time.Time `json:"-" db:"created_at"`
	UpdatedAt       time.Time `json:"-" db:"updated_at"`
}
