package seller

import "time"

// Seller - владелец данных. Все коллекции на сервере разделены по продавцам,
// несколько терминалов одного продавца видят одни и те же записи.
type Seller struct {
	ID        string
	Login     string
	Password  string // хэш
	CreatedAt time.Time
}

type Credentials struct {
	Login    string `json:"login" minLength:"3" maxLength:"32"`
	Password string `json:"password" minLength:"8" maxLength:"72"`
}
