package validation

import "strings"

// LoginInput is the signin body. Website is a honeypot.
type LoginInput struct {
	Email    string `json:"email" validate:"required,email,max=255"`
	Password string `json:"password" validate:"required,min=1,max=128"`
	Website  string `json:"website" validate:"-"`
}

func (in *LoginInput) normalize() {
	in.Email = strings.ToLower(strings.TrimSpace(in.Email))
}

func (in *LoginInput) sanitize() {}

// RegisterInput is the self-registration body. Website is a honeypot and is
// never validated.
type RegisterInput struct {
	Email     string `json:"email" validate:"required,email,max=255"`
	Password  string `json:"password" validate:"required,min=8,pwbytes,strongpw"`
	FirstName string `json:"firstName" validate:"required,min=2,max=50,safetext"`
	LastName  string `json:"lastName" validate:"required,min=2,max=50,safetext"`
	Website   string `json:"website" validate:"-"`
}

func (in *RegisterInput) normalize() {
	in.Email = strings.ToLower(strings.TrimSpace(in.Email))
	in.FirstName = strings.TrimSpace(in.FirstName)
	in.LastName = strings.TrimSpace(in.LastName)
}

func (in *RegisterInput) sanitize() {
	in.FirstName = Sanitize(in.FirstName)
	in.LastName = Sanitize(in.LastName)
}

// PasswordResetRequestInput asks for a reset link
type PasswordResetRequestInput struct {
	Email string `json:"email" validate:"required,email,max=255"`
}

func (in *PasswordResetRequestInput) normalize() {
	in.Email = strings.ToLower(strings.TrimSpace(in.Email))
}

func (in *PasswordResetRequestInput) sanitize() {}

// PasswordResetConfirmInput sets a new password with a reset token
type PasswordResetConfirmInput struct {
	Token    string `json:"token" validate:"required,max=256"`
	Password string `json:"password" validate:"required,min=8,pwbytes,strongpw"`
}

func (in *PasswordResetConfirmInput) normalize() {
	in.Token = strings.TrimSpace(in.Token)
}

func (in *PasswordResetConfirmInput) sanitize() {}

// DefaultMaxStudents applies when a course omits maxStudents
const DefaultMaxStudents = 50

// CourseInput describes a course
type CourseInput struct {
	Title       string `json:"title" validate:"required,min=3,max=200,safetext"`
	Description string `json:"description" validate:"omitempty,max=2000,safetext"`
	Code        string `json:"code" validate:"required,min=1,max=20,coursecode"`
	Duration    int    `json:"duration" validate:"gt=0,lte=10000"`
	MaxStudents int    `json:"maxStudents" validate:"gt=0,lte=1000"`
	Level       string `json:"level" validate:"max=50,safetext"`
}

func (in *CourseInput) normalize() {
	if in.MaxStudents == 0 {
		in.MaxStudents = DefaultMaxStudents
	}
}

func (in *CourseInput) sanitize() {
	in.Title = Sanitize(strings.TrimSpace(in.Title))
	in.Description = Sanitize(strings.TrimSpace(in.Description))
}

// LessonInput describes a lesson. A zero Duration means unset.
type LessonInput struct {
	Title       string `json:"title" validate:"required,min=3,max=200,safetext"`
	Description string `json:"description" validate:"omitempty,max=2000,safetext"`
	Content     string `json:"content" validate:"omitempty,max=50000"`
	VideoURL    string `json:"videoUrl" validate:"omitempty,url,max=500"`
	Duration    int    `json:"duration" validate:"omitempty,gt=0,lte=600"`
	Order       int    `json:"order" validate:"gte=0,lte=1000"`
}

func (in *LessonInput) normalize() {}

func (in *LessonInput) sanitize() {
	in.Title = Sanitize(strings.TrimSpace(in.Title))
	in.Description = Sanitize(strings.TrimSpace(in.Description))
}

// SearchInput is a free-text search query
type SearchInput struct {
	Query string `json:"query" validate:"required,min=1,max=100,safetext"`
}

func (in *SearchInput) normalize() {}

func (in *SearchInput) sanitize() {
	in.Query = Sanitize(strings.TrimSpace(in.Query))
}

// IDInput is a single resource identifier
type IDInput struct {
	ID string `json:"id" validate:"required,uuid|cuid"`
}

func (in *IDInput) normalize() {
	in.ID = strings.TrimSpace(in.ID)
}

func (in *IDInput) sanitize() {}
