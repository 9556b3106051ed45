package models

import (
	"time"
)

const (
	RoleAdmin = "admin"
	RoleTech  = "tech"
)

type AdminUser struct {
	ID               uint      `gorm:"primaryKey;autoIncrement" json:"id"`
	Email            string    `gorm:"uniqueIndex;not null"     json:"email"`
	PasswordHash     string    `gorm:"not null"                 json:"-"`
	Role             string    `gorm:"not null;default:admin"   json:"role"`
	Address          string    `json:"address"`
	RegistrationDate time.Time `gorm:"autoCreateTime"           json:"registration_date"`
}

type Equipment struct {
	ID              uint       `gorm:"primaryKey;autoIncrement" json:"id"`
	AdminUserID     uint       `gorm:"index;not null"           json:"admin_user_id"`
	Type            string     `gorm:"not null"                 json:"type"`
	VIN             string     `gorm:"column:vin;uniqueIndex;not null" json:"vin"`
	Code            string     `gorm:"not null"                 json:"code"`
	Make            string     `json:"make"`
	Model           string     `json:"model"`
	QRToken         *string    `gorm:"column:qr_token;uniqueIndex" json:"-"`
	Mileage         *int       `json:"mileage"`
	ServiceRequired bool       `gorm:"default:false"            json:"service_required"`
	ServiceNote     string     `json:"service_note"`
	LastServiceDate *time.Time `json:"last_service_date"`
}

type Service struct {
	ID             uint       `gorm:"primaryKey;autoIncrement" json:"id"`
	EquipmentID    uint       `gorm:"index;not null"           json:"equipment_id"`
	Date           time.Time  `gorm:"not null"                 json:"date"`
	PerformedBy    string     `json:"performed_by"`
	Mileage        *int       `json:"mileage"`
	NextService    *time.Time `json:"next_service"`
	TotalCostCents *int64     `json:"total_cost_cents"`
	Notes          string     `json:"notes"`

	CostItems   []ServiceCostItem   `gorm:"foreignKey:ServiceID" json:"cost_items,omitempty"`
	Attachments []ServiceAttachment `gorm:"foreignKey:ServiceID" json:"attachments,omitempty"`
}

type Repair struct {
	ID             uint      `gorm:"primaryKey;autoIncrement" json:"id"`
	EquipmentID    uint      `gorm:"index;not null"           json:"equipment_id"`
	Date           time.Time `gorm:"not null"                 json:"date"`
	PerformedBy    string    `json:"performed_by"`
	Mileage        *int      `json:"mileage"`
	TotalCostCents *int64    `json:"total_cost_cents"`
	Notes          string    `json:"notes"`

	CostItems   []RepairCostItem   `gorm:"foreignKey:RepairID" json:"cost_items,omitempty"`
	Attachments []RepairAttachment `gorm:"foreignKey:RepairID" json:"attachments,omitempty"`
}

type ServiceCostItem struct {
	ID          uint   `gorm:"primaryKey;autoIncrement" json:"id"`
	ServiceID   uint   `gorm:"index;not null"           json:"service_id"`
	Description string `gorm:"not null"                 json:"description"`
	AmountCents int64  `gorm:"not null;check:amount_cents>0" json:"amount_cents"`
}

type RepairCostItem struct {
	ID          uint   `gorm:"primaryKey;autoIncrement" json:"id"`
	RepairID    uint   `gorm:"index;not null"           json:"repair_id"`
	Description string `gorm:"not null"                 json:"description"`
	AmountCents int64  `gorm:"not null;check:amount_cents>0" json:"amount_cents"`
}

type ServiceAttachment struct {
	ID           uint      `gorm:"primaryKey;autoIncrement" json:"id"`
	ServiceID    uint      `gorm:"index;not null"           json:"service_id"`
	OriginalName string    `gorm:"not null"                 json:"original_name"`
	StoredName   string    `gorm:"uniqueIndex;not null"     json:"-"`
	UploadedAt   time.Time `gorm:"autoCreateTime"           json:"uploaded_at"`
}

type RepairAttachment struct {
	ID           uint      `gorm:"primaryKey;autoIncrement" json:"id"`
	RepairID     uint      `gorm:"index;not null"           json:"repair_id"`
	OriginalName string    `gorm:"not null"                 json:"original_name"`
	StoredName   string    `gorm:"uniqueIndex;not null"     json:"-"`
	UploadedAt   time.Time `gorm:"autoCreateTime"           json:"uploaded_at"`
}

type EquipmentCheckIn struct {
	ID          uint      `gorm:"primaryKey;autoIncrement" json:"id"`
	EquipmentID uint      `gorm:"index;not null"           json:"equipment_id"`
	Mileage     *int      `json:"mileage"`
	Issues      string    `json:"issues"`
	CreatedAt   time.Time `gorm:"autoCreateTime"           json:"created_at"`
}

// AuditLog rows are insert-only. UserID is nil for public check-ins.
type AuditLog struct {
	ID         uint      `gorm:"primaryKey;autoIncrement" json:"id"`
	UserID     *uint     `gorm:"index"                    json:"user_id"`
	Action     string    `gorm:"not null"                 json:"action"`
	EntityType string    `gorm:"not null"                 json:"entity_type"`
	EntityID   *uint     `json:"entity_id"`
	Details    string    `json:"details"`
	CreatedAt  time.Time `gorm:"autoCreateTime"           json:"created_at"`
}

type BidTrackerEntry struct {
	ID               uint       `gorm:"primaryKey;autoIncrement" json:"id"`
	AdminUserID      uint       `gorm:"index;not null"           json:"admin_user_id"`
	ProjectName      string     `json:"project_name"`
	Client           string     `json:"client"`
	Role             string     `json:"role"`
	BidType          string     `json:"bid_type"`
	SubmissionStatus string     `json:"submission_status"`
	DueDate          *time.Time `json:"due_date"`
	AmountCents      *int64     `json:"amount_cents"`
	Notes            string     `json:"notes"`
	CreatedAt        time.Time  `gorm:"autoCreateTime"           json:"created_at"`
}
