package api

import (
	"encoding/json"

	"github.com/iudanet/docsync/internal/patch"
)

// MessageType тип кадра realtime канала
type MessageType string

// Client -> server
const (
	MsgOpen  MessageType = "open"  // подписка на документ, ответ MsgSnapshot
	MsgOp    MessageType = "op"    // отправка операций с версией, ответ MsgAck или MsgError
	MsgFetch MessageType = "fetch" // повторная загрузка снапшота, ответ MsgSnapshot
	MsgShout MessageType = "shout" // широковещательное сообщение, без ответа
	MsgClose MessageType = "close" // отписка от документа, без ответа
)

// Server -> client
const (
	MsgHello    MessageType = "hello"    // первый кадр соединения: идентификатор сессии
	MsgSnapshot MessageType = "snapshot" // ответ на open/fetch
	MsgAck      MessageType = "ack"      // операции приняты
	MsgError    MessageType = "error"    // запрос отклонен
	MsgChange   MessageType = "change"   // изменение от другой сессии или REST
)

// Message кадр realtime канала. Поля заполняются в зависимости от Type.
type Message struct {
	Snapshot *Entity         `json:"snapshot,omitempty"`
	Sys      *Sys            `json:"sys,omitempty"`
	User     *User           `json:"user,omitempty"`
	Error    *ErrorResponse  `json:"error,omitempty"`
	Type     MessageType     `json:"type"`
	ID       string          `json:"id,omitempty"`  // идентификатор запроса для сопоставления ответа
	Doc      string          `json:"doc,omitempty"` // ключ канала space!type!id
	Src      string          `json:"src,omitempty"` // сессия-источник
	Data     json.RawMessage `json:"data,omitempty"`
	Ops      []patch.Op      `json:"ops,omitempty"`
	V        int64           `json:"v,omitempty"`
}

// IsReply reports whether m answers a request identified by m.ID.
func (m Message) IsReply() bool {
	switch m.Type {
	case MsgSnapshot, MsgAck, MsgError:
		return m.ID != ""
	}
	return false
}
