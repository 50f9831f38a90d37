package shell

// Item is one categorized entity extracted from the user's notes or added by
// hand: a person, a place, a value, a long-term goal.
type Item struct {
	ID               string `gorm:"column:item_id;primaryKey;size:190;not null"`
	UserID           string `gorm:"column:user_id;size:190;not null;index:idx_shell_items_user"`
	Category         string `gorm:"column:category;size:190;not null"`
	Title            string `gorm:"column:title;size:320;not null"`
	Description      string `gorm:"column:description;type:text"`
	CreatedAtSeconds int64  `gorm:"column:created_at_s;not null"`
}

// TableName provides the explicit table binding for GORM.
func (Item) TableName() string {
	return "shell_items"
}

// Category is a user-defined grouping on top of the built-in set.
type Category struct {
	ID               string `gorm:"column:category_id;primaryKey;size:190;not null"`
	UserID           string `gorm:"column:user_id;size:190;not null;index:idx_shell_categories_user"`
	Name             string `gorm:"column:name;size:190;not null"`
	Description      string `gorm:"column:description;type:text"`
	IconName         string `gorm:"column:icon_name;size:64"`
	CreatedAtSeconds int64  `gorm:"column:created_at_s;not null"`
}

// TableName provides the explicit table binding for GORM.
func (Category) TableName() string {
	return "shell_categories"
}

// BuiltinCategories is the default grouping offered before the user defines
// their own.
var BuiltinCategories = []Category{
	{Name: "Core Values", Description: "Your life principles", IconName: "Gem"},
	{Name: "People", Description: "Connections & Inner circle", IconName: "Users"},
	{Name: "Places", Description: "Locations that matter", IconName: "MapPin"},
	{Name: "Long-term Goals", Description: "Your north star", IconName: "Target"},
}
