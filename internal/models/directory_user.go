package models

// DirectoryUser mirrors the two columns the monitor reads from the Moodle
// user table. Moodle table names carry a site-configured prefix, so the
// table is bound with db.Table at query time instead of a fixed TableName.
type DirectoryUser struct {
	ID     int64  `gorm:"primaryKey;column:id"`
	LastIP string `gorm:"column:lastip;size:45"`
}
