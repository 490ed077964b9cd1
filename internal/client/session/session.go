// session — состояние клиентской сессии портала.
//
// Основные аспекты:
//   - access-токен и флаг проверки живут только в памяти; refresh-токен
//     и роль дублируются в durable-хранилище;
//   - роль из durable-хранилища — только подсказка до первой проверки;
//   - связанные поля меняются одной записью через Update, поэтому читатель
//     не увидит IsAuthenticated=true вместе с ролью прошлой сессии.
package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/pribylovaa/club-portal/internal/client/durable"
	"github.com/pribylovaa/club-portal/internal/models"
	logctx "github.com/pribylovaa/club-portal/internal/pkg/log"
)

// ErrReplaced — другой экземпляр клиента сменил или очистил сессию
// в durable-хранилище. Состояние в памяти к этому моменту уже выведено заново.
var ErrReplaced = errors.New("session replaced in durable storage")

// State — снимок состояния сессии.
type State struct {
	AccessCredential string
	IsAuthenticated  bool
	Role             models.Role
	IsVerifying      bool
}

// Store — потокобезопасный контейнер состояния сессии.
type Store struct {
	durable durable.Store

	mu      sync.RWMutex
	state   State
	refresh string // последний известный refresh-токен из durable
}

// New создаёт Store и засевает его из durable-хранилища: наличие
// refresh-токена делает сессию условно аутентифицированной до проверки.
// Повреждённое хранилище трактуется как отсутствие сессии.
func New(ctx context.Context, d durable.Store) *Store {
	s := &Store{durable: d}

	snap, err := d.Load()
	if err != nil {
		logctx.From(ctx).Warn("session_durable_load_failed", slog.String("err", err.Error()))
		snap = durable.Snapshot{}
	}
	s.applySnapshot(snap)

	return s
}

// Get возвращает копию состояния.
func (s *Store) Get() State {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state
}

// RefreshCredential читает refresh-токен из durable-хранилища.
// Если токен не совпадает с известным, состояние выводится заново, как
// в Resync: access-токен и роль прежней сессии сбрасываются.
func (s *Store) RefreshCredential(ctx context.Context) (string, error) {
	const op = "client.session.RefreshCredential"

	snap, err := s.durable.Load()
	if err != nil {
		return "", fmt.Errorf("%s: %w", op, err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if snap.RefreshToken != s.refresh {
		logctx.From(ctx).Info("session_replaced_externally",
			slog.Bool("logged_out", snap.RefreshToken == ""),
		)
		s.applySnapshotLocked(snap)
	}

	return snap.RefreshToken, nil
}

func (s *Store) SetAccessCredential(c string) {
	s.mu.Lock()
	s.state.AccessCredential = c
	s.mu.Unlock()
}

func (s *Store) SetAuthenticated(b bool) {
	s.mu.Lock()
	s.state.IsAuthenticated = b
	s.mu.Unlock()
}

func (s *Store) SetVerifying(b bool) {
	s.mu.Lock()
	s.state.IsVerifying = b
	s.mu.Unlock()
}

// SetRole меняет роль и дублирует её в durable-хранилище.
func (s *Store) SetRole(r models.Role) error {
	return s.Update(func(st *State) { st.Role = r })
}

// Update применяет fn к состоянию одной записью.
// Если роль изменилась, она дублируется в durable-хранилище.
// Если refresh-токен в хранилище уже не тот, что известен Store, fn не
// применяется: состояние выводится из хранилища и возвращается ErrReplaced.
func (s *Store) Update(fn func(*State)) error {
	const op = "client.session.Update"

	s.mu.Lock()
	defer s.mu.Unlock()

	// Ошибку чтения здесь не поднимаем: её покажет следующий RefreshCredential.
	if snap, err := s.durable.Load(); err == nil && snap.RefreshToken != s.refresh {
		s.applySnapshotLocked(snap)
		return fmt.Errorf("%s: %w", op, ErrReplaced)
	}

	prev := s.state.Role
	next := s.state
	fn(&next)
	s.state = next

	if next.Role == prev {
		return nil
	}

	if err := s.saveLocked(durable.Snapshot{RefreshToken: s.refresh, Role: next.Role}); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	return nil
}

// Establish фиксирует новую сессию после входа или регистрации.
func (s *Store) Establish(access, refresh string, role models.Role) error {
	const op = "client.session.Establish"

	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.saveLocked(durable.Snapshot{RefreshToken: refresh, Role: role}); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	s.state = State{
		AccessCredential: access,
		IsAuthenticated:  true,
		Role:             role,
	}

	return nil
}

// Logout удаляет refresh-токен и роль из durable-хранилища и сбрасывает
// всё состояние одной записью. Память очищается даже при ошибке записи.
func (s *Store) Logout() error {
	const op = "client.session.Logout"

	s.mu.Lock()
	defer s.mu.Unlock()

	err := s.saveLocked(durable.Snapshot{})
	s.state = State{}
	s.refresh = ""

	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	return nil
}

// Resync заново выводит состояние из durable-хранилища после изменения,
// сделанного другим экземпляром клиента. Возвращает true, если сессия
// в хранилище отличается от той, что была в памяти.
func (s *Store) Resync(ctx context.Context) bool {
	snap, err := s.durable.Load()
	if err != nil {
		logctx.From(ctx).Warn("session_resync_load_failed", slog.String("err", err.Error()))
		snap = durable.Snapshot{}
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if snap.RefreshToken == s.refresh && snap.Role == s.state.Role {
		return false
	}

	s.applySnapshotLocked(snap)

	return true
}

func (s *Store) applySnapshot(snap durable.Snapshot) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.applySnapshotLocked(snap)
}

// applySnapshotLocked: access-токен памяти принадлежал прежней сессии
// и всегда сбрасывается; роль из хранилища — подсказка до проверки.
func (s *Store) applySnapshotLocked(snap durable.Snapshot) {
	s.refresh = snap.RefreshToken
	s.state = State{
		IsAuthenticated: snap.RefreshToken != "",
		Role:            snap.Role,
		IsVerifying:     s.state.IsVerifying,
	}
	if snap.RefreshToken == "" {
		s.state.Role = ""
	}
}

func (s *Store) saveLocked(snap durable.Snapshot) error {
	if err := s.durable.Save(snap); err != nil {
		return err
	}
	s.refresh = snap.RefreshToken
	return nil
}
