package record

import "fmt"

// IDKind - происхождение идентификатора записи
type IDKind string

const (
	// KindLocal - идентификатор сгенерирован на клиенте
	KindLocal IDKind = "local"
	// KindServer - идентификатор выдан сервером
	KindServer IDKind = "server"
)

// ID - тегированный идентификатор. Вид определяется в момент создания
// записи или разбора ответа сервера, а не по формату строки.
type ID struct {
	Kind  IDKind
	Value string
}

func LocalID(v string) ID  { return ID{Kind: KindLocal, Value: v} }
func ServerID(v string) ID { return ID{Kind: KindServer, Value: v} }

func (id ID) IsLocal() bool  { return id.Kind == KindLocal }
func (id ID) IsServer() bool { return id.Kind == KindServer }
func (id ID) IsZero() bool   { return id.Value == "" }

func (id ID) String() string {
	return fmt.Sprintf("%s:%s", id.Kind, id.Value)
}
