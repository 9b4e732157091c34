package enums

// ThemeCategory groups storefront themes in the theme marketplace.
type ThemeCategory string

const (
	ThemeCategoryConference ThemeCategory = "CONFERENCE"
	ThemeCategoryConcert    ThemeCategory = "CONCERT"
	ThemeCategorySports     ThemeCategory = "SPORTS"
	ThemeCategoryFestival   ThemeCategory = "FESTIVAL"
	ThemeCategoryWorkshop   ThemeCategory = "WORKSHOP"
	ThemeCategoryTheater    ThemeCategory = "THEATER"
	ThemeCategoryOther      ThemeCategory = "OTHER"
)

// ThemeCategories lists every category in display order.
var ThemeCategories = []ThemeCategory{
	ThemeCategoryConference,
	ThemeCategoryConcert,
	ThemeCategorySports,
	ThemeCategoryFestival,
	ThemeCategoryWorkshop,
	ThemeCategoryTheater,
	ThemeCategoryOther,
}

func (c ThemeCategory) IsValid() bool {
	for _, candidate := range ThemeCategories {
		if candidate == c {
			return true
		}
	}
	return false
}
