package entity

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
)

// FileIDs 文件ID集合（jsonb数组）
type FileIDs []string

func (f FileIDs) Value() (driver.Value, error) {
	if f == nil {
		return "[]", nil
	}
	b, err := json.Marshal([]string(f))
	if err != nil {
		return nil, err
	}
	return string(b), nil
}

func (f *FileIDs) Scan(value interface{}) error {
	if value == nil {
		*f = FileIDs{}
		return nil
	}
	var bytes []byte
	switch v := value.(type) {
	case []byte:
		bytes = v
	case string:
		bytes = []byte(v)
	default:
		return fmt.Errorf("failed to scan FileIDs: %v", value)
	}
	var ids []string
	if err := json.Unmarshal(bytes, &ids); err != nil {
		return err
	}
	*f = ids
	return nil
}

// Clone 复制一份，避免共享底层数组
func (f FileIDs) Clone() FileIDs {
	out := make(FileIDs, len(f))
	copy(out, f)
	return out
}

// Dedup 去重并保持原有顺序，丢弃空ID
func (f FileIDs) Dedup() FileIDs {
	seen := make(map[string]struct{}, len(f))
	out := make(FileIDs, 0, len(f))
	for _, id := range f {
		if id == "" {
			continue
		}
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}
