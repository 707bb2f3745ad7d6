package record

import (
	"encoding/json"
	"fmt"
)

// Map возвращает запись в виде плоского объекта для API ответов.
func (r Record) Map() (map[string]any, error) {
	b, err := json.Marshal(r)
	if err != nil {
		return nil, err
	}
	var out map[string]any
	if err := json.Unmarshal(b, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// FromMap разбирает плоский объект из тела запроса.
func FromMap(m map[string]any) (*Record, error) {
	b, err := json.Marshal(m)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidRecord, err)
	}
	var r Record
	if err := json.Unmarshal(b, &r); err != nil {
		return nil, err
	}
	return &r, nil
}
