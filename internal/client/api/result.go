package api

// ErrorKind — вид отказа на сетевой границе клиента.
type ErrorKind string

const (
	// KindMissingCredential — токен не предъявлен (нет в хранилище или сервер ответил 400).
	KindMissingCredential ErrorKind = "missing_credential"
	// KindInvalidOrExpiredCredential — подпись/срок токена не прошли проверку.
	KindInvalidOrExpiredCredential ErrorKind = "invalid_or_expired_credential"
	// KindNetworkFailure — запрос не завершился: сеть, таймаут, 5xx, битый ответ.
	KindNetworkFailure ErrorKind = "network_failure"
	// KindRoleMismatch — роль в кэше разошлась с авторитетной.
	KindRoleMismatch ErrorKind = "role_mismatch"
	// KindInsufficientPrivilege — сессия валидна, но роль не допускает маршрут.
	KindInsufficientPrivilege ErrorKind = "insufficient_privilege"
	// KindRejected — сервер отклонил форму входа/регистрации; Message показывается пользователю.
	KindRejected ErrorKind = "rejected"
)

// Result — размеченный результат сетевого вызова.
// HTTP-статус и поле status:"failed" переводятся в Kind сразу на границе.
type Result[T any] struct {
	OK      bool
	Value   T
	Kind    ErrorKind
	Message string
	// Status — HTTP-статус ответа; 0, если ответа не было.
	Status int
}

func ok[T any](v T, status int) Result[T] {
	return Result[T]{OK: true, Value: v, Status: status}
}

func fail[T any](kind ErrorKind, msg string, status int) Result[T] {
	return Result[T]{Kind: kind, Message: msg, Status: status}
}

// Err возвращает результат как error (nil при OK).
func (r Result[T]) Err() error {
	if r.OK {
		return nil
	}
	return &Error{Kind: r.Kind, Message: r.Message, Status: r.Status}
}

// Error — отказ в виде error для вызывающих, которым удобнее if err != nil.
type Error struct {
	Kind    ErrorKind
	Message string
	Status  int
}

func (e *Error) Error() string {
	if e.Message == "" {
		return string(e.Kind)
	}
	return string(e.Kind) + ": " + e.Message
}
