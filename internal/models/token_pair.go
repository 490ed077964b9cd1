package models

import "time"

// TokenPair — пара токенов, выдаваемая при входе/регистрации.
//
// Описание:
//   - AccessToken — короткоживущий JWT для доступа к API (TTL 1 час);
//   - RefreshToken — долгоживущий JWT, подписанный отдельным секретом;
//     клиент хранит его в долговременном хранилище и предъявляет только
//     эндпоинту обновления;
//   - AccessExpiresAt — момент истечения access-токена (UTC).
type TokenPair struct {
	AccessToken     string
	RefreshToken    string
	AccessExpiresAt time.Time
}
