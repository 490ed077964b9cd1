// gate решает, что показать по запрошенному пути: загрузку, сам маршрут
// или редирект. Решение — чистая функция состояния проверки, роли и пути.
package gate

import (
	"errors"
	"fmt"
	"os"
	"path"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/pribylovaa/club-portal/internal/models"
)

const (
	HomePath  = "/"
	LoginPath = "/login"
)

// ErrInvalidTable — таблица маршрутов не разбирается или содержит
// неизвестный класс.
var ErrInvalidTable = errors.New("invalid route table")

// Decision — итог проверки маршрута.
type Decision int

const (
	RenderLoading Decision = iota
	RenderRoute
	RedirectToLogin
	RedirectToHome
)

func (d Decision) String() string {
	switch d {
	case RenderLoading:
		return "render_loading"
	case RenderRoute:
		return "render_route"
	case RedirectToLogin:
		return "redirect_to_login"
	case RedirectToHome:
		return "redirect_to_home"
	default:
		return fmt.Sprintf("decision(%d)", int(d))
	}
}

// Target — путь редиректа для решения ("" если редиректа нет).
func (d Decision) Target() string {
	switch d {
	case RedirectToLogin:
		return LoginPath
	case RedirectToHome:
		return HomePath
	default:
		return ""
	}
}

// Class — класс маршрута по требуемой роли.
type Class string

const (
	ClassPublic   Class = "public"
	ClassStandard Class = "standard"
	ClassAdmin    Class = "admin"
	ClassTopAdmin Class = "top_admin"
)

// Valid сообщает, известен ли класс.
func (c Class) Valid() bool {
	switch c {
	case ClassPublic, ClassStandard, ClassAdmin, ClassTopAdmin:
		return true
	default:
		return false
	}
}

// Allows сообщает, допускает ли класс маршрута роль.
// Публичный маршрут допускает любую роль, в том числе пустую.
func (c Class) Allows(r models.Role) bool {
	switch c {
	case ClassPublic:
		return true
	case ClassStandard:
		return r.Rank() >= models.RoleUser.Rank()
	case ClassAdmin:
		return r.Rank() >= models.RoleAdmin.Rank()
	case ClassTopAdmin:
		return r == models.RoleTopAdmin
	default:
		return false
	}
}

// Input — всё, от чего зависит решение.
type Input struct {
	Verifying bool
	Valid     bool
	Role      models.Role
	Path      string
}

type route struct {
	prefix string
	class  Class
}

// Table — таблица маршрутов; поиск по самому длинному префиксу
// с учётом границ сегментов. Неизвестные пути — ClassStandard.
type Table struct {
	routes []route
}

// DefaultRoutes — маршруты портала по умолчанию.
func DefaultRoutes() map[string]Class {
	return map[string]Class{
		"/":              ClassPublic,
		"/login":         ClassPublic,
		"/signup":        ClassPublic,
		"/announcements": ClassStandard,
		"/achievements":  ClassStandard,
		"/profile":       ClassStandard,
		"/admin":         ClassAdmin,
		"/admin/roles":   ClassTopAdmin,
	}
}

var defaultTable = MustTable(DefaultRoutes())

// Default возвращает таблицу по умолчанию.
func Default() *Table { return defaultTable }

// NewTable строит таблицу из отображения префикс → класс.
func NewTable(routes map[string]Class) (*Table, error) {
	const op = "client.gate.NewTable"

	t := &Table{routes: make([]route, 0, len(routes))}
	for p, c := range routes {
		if !c.Valid() {
			return nil, fmt.Errorf("%s: %w: unknown class %q for %q", op, ErrInvalidTable, c, p)
		}
		if !strings.HasPrefix(p, "/") {
			return nil, fmt.Errorf("%s: %w: path %q must start with /", op, ErrInvalidTable, p)
		}
		t.routes = append(t.routes, route{prefix: clean(p), class: c})
	}

	sort.Slice(t.routes, func(i, j int) bool {
		return len(t.routes[i].prefix) > len(t.routes[j].prefix)
	})

	return t, nil
}

// MustTable — NewTable, паникующий при ошибке.
func MustTable(routes map[string]Class) *Table {
	t, err := NewTable(routes)
	if err != nil {
		panic(err)
	}
	return t
}

type tableFile struct {
	Routes map[string]Class `yaml:"routes"`
}

// LoadTable читает таблицу из YAML-файла вида:
//
//	routes:
//	  /announcements: standard
//	  /admin: admin
func LoadTable(file string) (*Table, error) {
	const op = "client.gate.LoadTable"

	raw, err := os.ReadFile(file)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	var tf tableFile
	if err := yaml.Unmarshal(raw, &tf); err != nil {
		return nil, fmt.Errorf("%s: %w: %w", op, ErrInvalidTable, err)
	}
	if len(tf.Routes) == 0 {
		return nil, fmt.Errorf("%s: %w: no routes", op, ErrInvalidTable)
	}

	t, err := NewTable(tf.Routes)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	return t, nil
}

// Classify возвращает класс пути. Корень "/" совпадает только сам с собой,
// иначе любой неизвестный путь стал бы публичным.
func (t *Table) Classify(p string) Class {
	p = clean(p)

	for _, r := range t.routes {
		if r.prefix == "/" {
			if p == "/" {
				return r.class
			}
			continue
		}
		if p == r.prefix || strings.HasPrefix(p, r.prefix+"/") {
			return r.class
		}
	}

	return ClassStandard
}

// Decide принимает решение по маршруту.
func (t *Table) Decide(in Input) Decision {
	class := t.Classify(in.Path)

	switch {
	case class == ClassPublic:
		return RenderRoute
	case in.Verifying:
		return RenderLoading
	case !in.Valid:
		return RedirectToLogin
	case !class.Allows(in.Role):
		return RedirectToHome
	default:
		return RenderRoute
	}
}

// Decide — решение по таблице по умолчанию.
func Decide(in Input) Decision {
	return defaultTable.Decide(in)
}

// clean отбрасывает query/fragment и нормализует путь.
func clean(p string) string {
	if i := strings.IndexAny(p, "?#"); i >= 0 {
		p = p[:i]
	}
	if p == "" {
		return "/"
	}
	if !strings.HasPrefix(p, "/") {
		p = "/" + p
	}
	return path.Clean(p)
}
