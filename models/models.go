package models

// All returns every model in migration order
func All() []interface{} {
	return []interface{}{
		&User{},
		&ManufacturerProfile{},
		&Design{},
		&Quote{},
		&Order{},
		&AnalysisJob{},
		&Review{},
	}
}
