package entity

// All 需要自动迁移的全部表，按依赖顺序
func All() []interface{} {
	return []interface{}{
		&Project{},
		&Stage{},
		&StageFile{},
		&Drawing{},
		&DrawingFinalFile{},
		&StageLog{},
	}
}
