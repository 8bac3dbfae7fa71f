package repository

import "time"

// Role is an access role. Admin tokens carry the role id.
type Role struct {
	ID        string    `gorm:"column:role_id;primaryKey;size:36" json:"role_id"`
	Name      string    `gorm:"column:role_name;uniqueIndex;size:64;not null" json:"role_name"`
	CreatedAt time.Time `gorm:"column:created_at" json:"created_at"`
	UpdatedAt time.Time `gorm:"column:updated_at" json:"updated_at"`
}

func (Role) TableName() string { return "roles" }

// Admin is a back office account.
type Admin struct {
	ID           string    `gorm:"column:admin_id;primaryKey;size:36" json:"admin_id"`
	RoleID       string    `gorm:"column:role_id;size:36;not null;index" json:"role_id"`
	Role         *Role     `gorm:"foreignKey:RoleID;references:ID;constraint:OnDelete:RESTRICT" json:"role,omitempty"`
	Name         string    `gorm:"column:admin_name;size:128;not null" json:"admin_name"`
	Email        string    `gorm:"column:admin_email;uniqueIndex;size:255;not null" json:"admin_email"`
	PasswordHash string    `gorm:"column:admin_password;size:72;not null" json:"-"`
	Status       string    `gorm:"column:admin_status;size:16;default:active" json:"admin_status"`
	Image        string    `gorm:"column:admin_img;size:255" json:"admin_img"`
	CreatedAt    time.Time `gorm:"column:created_at" json:"created_at"`
	UpdatedAt    time.Time `gorm:"column:updated_at" json:"updated_at"`
}

func (Admin) TableName() string { return "admins" }

// User statuses.
const (
	StatusActive  = "active"
	StatusPending = "pending"
	StatusBlocked = "blocked"
)

// User is a gig worker using the mobile app.
type User struct {
	ID           string    `gorm:"column:user_id;primaryKey;size:36" json:"user_id"`
	Phone        string    `gorm:"column:phone;uniqueIndex;size:15;not null" json:"phone"`
	FirstName    string    `gorm:"column:user_first;size:128" json:"user_first"`
	LastName     string    `gorm:"column:user_last;size:128" json:"user_last"`
	BirthDate    string    `gorm:"column:user_birth_date;size:10" json:"user_birth_date,omitempty"`
	Gender       string    `gorm:"column:user_gender;size:16" json:"user_gender,omitempty"`
	Country      string    `gorm:"column:user_country;size:64" json:"user_country,omitempty"`
	PasswordHash string    `gorm:"column:user_password;size:72;not null" json:"-"`
	Status       string    `gorm:"column:user_status;size:16;default:active" json:"user_status"`
	Image        string    `gorm:"column:user_img;size:255" json:"user_img"`
	CreatedAt    time.Time `gorm:"column:created_at" json:"created_at"`
	UpdatedAt    time.Time `gorm:"column:updated_at" json:"updated_at"`
}

func (User) TableName() string { return "users" }

// Profile is the KYC profile of a user.
type Profile struct {
	ID            string        `gorm:"column:profile_id;primaryKey;size:36" json:"profile_id"`
	UserID        string        `gorm:"column:user_id;size:36;not null;index" json:"user_id"`
	WorkType      string        `gorm:"column:work_type;size:16;not null" json:"work_type"`
	Skill         string        `gorm:"column:skill;type:text" json:"skill,omitempty"`
	Website       string        `gorm:"column:website;size:255" json:"website,omitempty"`
	PortfolioPath string        `gorm:"column:portfolio_path;size:255" json:"portfolio_path"`
	Bank          *BankInfo     `gorm:"foreignKey:ProfileID;references:ID;constraint:OnDelete:CASCADE" json:"bank,omitempty"`
	PersonalCard  *PersonalCard `gorm:"foreignKey:ProfileID;references:ID;constraint:OnDelete:CASCADE" json:"personalCard,omitempty"`
	Passport      *Passport     `gorm:"foreignKey:ProfileID;references:ID;constraint:OnDelete:CASCADE" json:"passport,omitempty"`
	CreatedAt     time.Time     `gorm:"column:created_at" json:"created_at"`
}

func (Profile) TableName() string { return "profiles" }

type BankInfo struct {
	ID          string `gorm:"column:bank_id;primaryKey;size:36" json:"bank_id"`
	ProfileID   string `gorm:"column:profile_id;size:36;not null;index" json:"-"`
	BankName    string `gorm:"column:bank_name;size:128" json:"bank_name,omitempty"`
	BankAccount string `gorm:"column:bank_account;size:64" json:"bank_account,omitempty"`
	BankImage   string `gorm:"column:bank_img;size:255" json:"bank_img"`
}

func (BankInfo) TableName() string { return "bank_info" }

type PersonalCard struct {
	ID             string `gorm:"column:card_id;primaryKey;size:36" json:"card_id"`
	ProfileID      string `gorm:"column:profile_id;size:36;not null;index" json:"-"`
	Number         string `gorm:"column:card_number;size:64" json:"card_number,omitempty"`
	FirstName      string `gorm:"column:card_first_name;size:128" json:"card_first_name,omitempty"`
	LastName       string `gorm:"column:card_last_name;size:128" json:"card_last_name,omitempty"`
	Address        string `gorm:"column:card_address;type:text" json:"card_address,omitempty"`
	Nationality    string `gorm:"column:card_nationality;size:64" json:"card_nationality,omitempty"`
	Religion       string `gorm:"column:card_religion;size:64" json:"card_religion,omitempty"`
	BirthDate      string `gorm:"column:card_birth_date;size:10" json:"card_birth_date,omitempty"`
	IssueDate      string `gorm:"column:card_issue_date;size:10" json:"card_issue_date,omitempty"`
	ExpirationDate string `gorm:"column:card_expiration_date;size:10" json:"card_expiration_date,omitempty"`
	FrontImage     string `gorm:"column:card_front_img;size:255" json:"card_front_img"`
}

func (PersonalCard) TableName() string { return "personal_cards" }

type Passport struct {
	ID             string `gorm:"column:passport_id;primaryKey;size:36" json:"passport_id"`
	ProfileID      string `gorm:"column:profile_id;size:36;not null;index" json:"-"`
	Format         string `gorm:"column:passport_format;size:8" json:"passport_format,omitempty"`
	Number         string `gorm:"column:passport_number;size:32" json:"passport_number,omitempty"`
	FirstName      string `gorm:"column:passport_first_name;size:128" json:"passport_first_name,omitempty"`
	LastName       string `gorm:"column:passport_last_name;size:128" json:"passport_last_name,omitempty"`
	Gender         string `gorm:"column:passport_gender;size:16" json:"passport_gender,omitempty"`
	CountryCode    string `gorm:"column:passport_country_code;size:3" json:"passport_country_code,omitempty"`
	BirthDate      string `gorm:"column:passport_birth_date;size:10" json:"passport_birth_date,omitempty"`
	ExpirationDate string `gorm:"column:passport_expiration_date;size:10" json:"passport_expiration_date,omitempty"`
	MRZ            string `gorm:"column:mrz;type:text" json:"mrz,omitempty"`
	Image          string `gorm:"column:passport_img;size:255" json:"passport_img"`
}

func (Passport) TableName() string { return "passports" }

// Verification kinds.
const (
	KindMRZ  = "mrz"
	KindFace = "face"
)

// VerificationLog is the audit row of one identification or face comparison.
type VerificationLog struct {
	ID           uint      `gorm:"primaryKey" json:"-"`
	RequestID    string    `gorm:"column:request_id;uniqueIndex;size:64" json:"request_id"`
	UserID       string    `gorm:"column:user_id;size:64;index" json:"user_id,omitempty"`
	Kind         string    `gorm:"column:kind;size:16;index" json:"kind"`
	Success      bool      `gorm:"column:success" json:"success"`
	Format       string    `gorm:"column:format;size:8" json:"format,omitempty"`
	Valid        bool      `gorm:"column:valid" json:"valid"`
	Score        float32   `gorm:"column:score" json:"score"`
	Details      string    `gorm:"column:details;type:text" json:"details"`
	SHA1Hash     string    `gorm:"column:sha1_hash;size:40;index" json:"sha1_hash,omitempty"`
	ProcessingMs int64     `gorm:"column:processing_ms" json:"processing_ms"`
	CreatedAt    time.Time `gorm:"column:created_at" json:"created_at"`
}

func (VerificationLog) TableName() string {
	return "verification_logs"
}

// Country is a dialling code entry offered at sign up.
type Country struct {
	ID        int    `gorm:"column:country_id;primaryKey" json:"country_id"`
	Name      string `gorm:"column:country_name;size:128;not null" json:"country_name"`
	NameEN    string `gorm:"column:country_name_en;size:128" json:"country_name_en"`
	Code      string `gorm:"column:country_code;size:4;uniqueIndex" json:"country_code"`
	PhoneCode string `gorm:"column:phone_code;size:8" json:"phone_code"`
	IsActive  bool   `gorm:"column:is_active;default:true" json:"is_active"`
}

func (Country) TableName() string { return "countries" }

// Province, District and Village form the address hierarchy.
type Province struct {
	ID     int    `gorm:"column:pr_id;primaryKey" json:"pr_id"`
	Name   string `gorm:"column:pr_name;size:128;not null" json:"pr_name"`
	NameEN string `gorm:"column:pr_name_en;size:128" json:"pr_name_en"`
}

func (Province) TableName() string { return "provinces" }

type District struct {
	ID         int    `gorm:"column:dr_id;primaryKey" json:"dr_id"`
	ProvinceID int    `gorm:"column:pr_id;not null;index" json:"-"`
	Name       string `gorm:"column:dr_name;size:128;not null" json:"dr_name"`
	NameEN     string `gorm:"column:dr_name_en;size:128" json:"dr_name_en"`
}

func (District) TableName() string { return "districts" }

type Village struct {
	ID         int    `gorm:"column:vill_id;primaryKey" json:"vill_id"`
	DistrictID int    `gorm:"column:dr_id;not null;index" json:"-"`
	Name       string `gorm:"column:vill_name;size:128;not null" json:"vill_name"`
	NameEN     string `gorm:"column:vill_name_en;size:128" json:"vill_name_en"`
}

func (Village) TableName() string { return "villages" }

// AllModels lists every table managed by AutoMigrate, parents first.
func AllModels() []any {
	return []any{
		&Role{}, &Admin{}, &User{},
		&Profile{}, &BankInfo{}, &PersonalCard{}, &Passport{},
		&VerificationLog{},
		&Country{}, &Province{}, &District{}, &Village{},
	}
}
