package record

import (
	"bytes"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Зарезервированные ключи записи, остальные поля коллекции движку синхронизации не интересны.
const (
	keyID        = "id"
	keyServerID  = "_id"
	keyServerAlt = "serverId"
	keyLocalID   = "localId"
	keySynced    = "isSynced"
	keyDeleted   = "isDeleted"
	keyUpdatedAt = "updatedAt"
)

// Record - запись любой коллекции (клиенты, товары, заказы...)
type Record struct {
	ID        string
	IDKind    IDKind
	ServerID  string
	LocalID   string
	IsSynced  bool
	IsDeleted bool
	UpdatedAt time.Time

	// Fields - поля конкретной коллекции, хранятся как есть
	Fields map[string]json.RawMessage

	// deletedSet - флаг isDeleted явно присутствовал во входящих данных
	deletedSet bool
}

// NewLocal создает запись, заведенную на клиенте (в том числе офлайн).
// Идентификатор генерируется здесь же и помечается как локальный.
func NewLocal(fields map[string]json.RawMessage, now time.Time) *Record {
	id := uuid.NewString()
	if fields == nil {
		fields = make(map[string]json.RawMessage)
	}
	return &Record{
		ID:        id,
		IDKind:    KindLocal,
		LocalID:   id,
		IsSynced:  false,
		UpdatedAt: now.UTC(),
		Fields:    fields,
	}
}

// Ref возвращает тегированный идентификатор записи.
func (r *Record) Ref() ID {
	return ID{Kind: r.IDKind, Value: r.ID}
}

// Keys возвращает все идентификаторы, по которым запись может быть найдена.
func (r *Record) Keys() []string {
	keys := make([]string, 0, 3)
	for _, k := range []string{r.ID, r.ServerID, r.LocalID} {
		if k == "" {
			continue
		}
		dup := false
		for _, seen := range keys {
			if seen == k {
				dup = true
				break
			}
		}
		if !dup {
			keys = append(keys, k)
		}
	}
	return keys
}

// ExplicitlyUndeleted сообщает, что входящая запись явно несет isDeleted=false.
func (r *Record) ExplicitlyUndeleted() bool {
	return r.deletedSet && !r.IsDeleted
}

// Clone возвращает глубокую копию записи.
func (r *Record) Clone() *Record {
	c := *r
	c.Fields = make(map[string]json.RawMessage, len(r.Fields))
	for k, v := range r.Fields {
		c.Fields[k] = append(json.RawMessage(nil), v...)
	}
	return &c
}

// SameContent сравнивает поля коллекции и служебные флаги, влияющие на хранение.
func (r *Record) SameContent(other *Record) bool {
	if other == nil {
		return false
	}
	if r.ServerID != other.ServerID || r.IsDeleted != other.IsDeleted || !r.UpdatedAt.Equal(other.UpdatedAt) {
		return false
	}
	if len(r.Fields) != len(other.Fields) {
		return false
	}
	for k, v := range r.Fields {
		ov, ok := other.Fields[k]
		if !ok || !bytes.Equal(compact(v), compact(ov)) {
			return false
		}
	}
	return true
}

// Validate проверяет минимальные требования к записи перед сохранением.
func (r *Record) Validate() error {
	if r.ID == "" {
		return fmt.Errorf("%w: empty id", ErrInvalidRecord)
	}
	if r.UpdatedAt.IsZero() {
		return fmt.Errorf("%w: record %s has no updatedAt", ErrInvalidRecord, r.ID)
	}
	return nil
}

// UnmarshalJSON разбирает запись в формате удаленного API.
func (r *Record) UnmarshalJSON(data []byte) error {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidRecord, err)
	}

	var out Record
	var err error
	if out.ID, err = stringField(raw, keyID); err != nil {
		return err
	}
	if out.ServerID, err = stringField(raw, keyServerID); err != nil {
		return err
	}
	if out.ServerID == "" {
		if out.ServerID, err = stringField(raw, keyServerAlt); err != nil {
			return err
		}
	}
	if out.LocalID, err = stringField(raw, keyLocalID); err != nil {
		return err
	}
	if v, ok := raw[keySynced]; ok {
		if err := json.Unmarshal(v, &out.IsSynced); err != nil {
			return fmt.Errorf("%w: isSynced: %v", ErrInvalidRecord, err)
		}
	}
	if v, ok := raw[keyDeleted]; ok && string(v) != "null" {
		if err := json.Unmarshal(v, &out.IsDeleted); err != nil {
			return fmt.Errorf("%w: isDeleted: %v", ErrInvalidRecord, err)
		}
		out.deletedSet = true
	}
	ts, err := stringField(raw, keyUpdatedAt)
	if err != nil {
		return err
	}
	if ts != "" {
		if out.UpdatedAt, err = ParseTime(ts); err != nil {
			return fmt.Errorf("%w: updatedAt: %v", ErrInvalidRecord, err)
		}
	}

	switch {
	case out.ID == "" && out.ServerID != "":
		out.ID = out.ServerID
		out.IDKind = KindServer
	case out.ID != "" && out.ID == out.ServerID:
		out.IDKind = KindServer
	case out.ID != "" && (out.ServerID != "" || out.ID == out.LocalID):
		// сервер вернул эхо клиентского идентификатора
		out.IDKind = KindLocal
	case out.ID != "":
		out.IDKind = KindServer
	}

	for _, k := range []string{keyID, keyServerID, keyServerAlt, keyLocalID, keySynced, keyDeleted, keyUpdatedAt} {
		delete(raw, k)
	}
	out.Fields = raw

	*r = out
	return nil
}

// MarshalJSON собирает запись обратно в плоский JSON объект.
func (r Record) MarshalJSON() ([]byte, error) {
	out := make(map[string]any, len(r.Fields)+8)
	for k, v := range r.Fields {
		out[k] = v
	}
	out[keyID] = r.ID
	if r.ServerID != "" {
		out[keyServerID] = r.ServerID
	}
	if r.LocalID != "" {
		out[keyLocalID] = r.LocalID
	}
	out[keySynced] = r.IsSynced
	out[keyDeleted] = r.IsDeleted
	if !r.UpdatedAt.IsZero() {
		out[keyUpdatedAt] = FormatTime(r.UpdatedAt)
	}
	return json.Marshal(out)
}

// FieldString возвращает строковое поле коллекции, если оно есть.
func (r *Record) FieldString(name string) string {
	v, ok := r.Fields[name]
	if !ok {
		return ""
	}
	var s string
	if err := json.Unmarshal(v, &s); err != nil {
		return ""
	}
	return s
}

func stringField(raw map[string]json.RawMessage, key string) (string, error) {
	v, ok := raw[key]
	if !ok || string(v) == "null" {
		return "", nil
	}
	var s string
	if err := json.Unmarshal(v, &s); err == nil {
		return s, nil
	}
	// числовые идентификаторы встречаются в старых коллекциях
	var n json.Number
	if err := json.Unmarshal(v, &n); err == nil {
		return n.String(), nil
	}
	return "", fmt.Errorf("%w: field %s is not a string", ErrInvalidRecord, key)
}

func compact(b []byte) []byte {
	var buf bytes.Buffer
	if err := json.Compact(&buf, b); err != nil {
		return b
	}
	return buf.Bytes()
}

// Epoch - момент, означающий "полная синхронизация нужна"
var Epoch = time.Unix(0, 0).UTC()

// FormatTime приводит время к ISO-8601 в UTC.
func FormatTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}

// ParseTime разбирает ISO-8601 метку времени.
func ParseTime(s string) (time.Time, error) {
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return time.Time{}, err
	}
	return t.UTC(), nil
}
