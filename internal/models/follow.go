package models

// Follow is one directed edge of the follow graph: FollowerID follows
// FollowedID. The pair is the primary key, so an edge exists at most once.
type Follow struct {
	FollowerID uint `gorm:"primaryKey;autoIncrement:false" json:"follower_id"`
	FollowedID uint `gorm:"primaryKey;autoIncrement:false;index" json:"followed_id"`
	Follower   User `gorm:"foreignKey:FollowerID;constraint:OnDelete:CASCADE" json:"-"`
	Followed   User `gorm:"foreignKey:FollowedID;constraint:OnDelete:CASCADE" json:"-"`
}

// TableName keeps the association table named after the relation.
func (Follow) TableName() string {
	return "followers"
}
