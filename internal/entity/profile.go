package entity

// Profile is the local mirror of a profile in the surrounding application
type Profile struct {
	Id          int64  `json:"id" gorm:"column:id;primaryKey"`
	DisplayName string `json:"display_name" gorm:"column:display_name;type:varchar(128)"`
	AvatarURL   string `json:"avatar_url" gorm:"column:avatar_url;type:varchar(512)"`
	IsVerified  bool   `json:"is_verified" gorm:"column:is_verified"`
	IsCompany   bool   `json:"is_company" gorm:"column:is_company"`
	CreatedAt   int64  `json:"created_at" gorm:"column:created_at;autoCreateTime:milli"`
	UpdatedAt   int64  `json:"updated_at" gorm:"column:updated_at;autoUpdateTime:milli"`
}

// TableName returns the table name for Profile
func (Profile) TableName() string {
	return "profiles"
}

// ProfileInfo represents public display data of a profile
type ProfileInfo struct {
	Id          int64  `json:"id"`
	DisplayName string `json:"display_name"`
	AvatarURL   string `json:"avatar_url"`
	IsVerified  bool   `json:"is_verified"`
	IsCompany   bool   `json:"is_company"`
}

// ToProfileInfo converts Profile to ProfileInfo
func (p *Profile) ToProfileInfo() *ProfileInfo {
	if p == nil {
		return nil
	}
	return &ProfileInfo{
		Id:          p.Id,
		DisplayName: p.DisplayName,
		AvatarURL:   p.AvatarURL,
		IsVerified:  p.IsVerified,
		IsCompany:   p.IsCompany,
	}
}
