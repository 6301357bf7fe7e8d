package bot

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// ErrMalformedCommand команда без обязательного числового ID или с некорректным ID
var ErrMalformedCommand = errors.New("malformed command")

// Command разобранная команда вида /name, /name_<id> или /name@bot arg
type Command struct {
	Name  string
	ID    int64
	HasID bool
	// Param сырое значение после последнего подчеркивания
	Param string
	Args  []string
}

// ParseCommand разбирает текст команды. ID отделяется последним подчеркиванием.
func ParseCommand(text string) (Command, error) {
	fields := strings.Fields(text)
	if len(fields) == 0 || !strings.HasPrefix(fields[0], "/") {
		return Command{}, fmt.Errorf("%w: %q", ErrMalformedCommand, text)
	}

	token := strings.TrimPrefix(fields[0], "/")
	if at := strings.IndexByte(token, '@'); at >= 0 {
		token = token[:at]
	}
	token = strings.ToLower(token)
	if token == "" {
		return Command{}, fmt.Errorf("%w: пустая команда", ErrMalformedCommand)
	}

	cmd := Command{Name: token, Args: fields[1:]}
	if i := strings.LastIndexByte(token, '_'); i >= 0 {
		cmd.Name = token[:i]
		cmd.Param = token[i+1:]
		if id, err := strconv.ParseInt(cmd.Param, 10, 64); err == nil && id > 0 {
			cmd.ID = id
			cmd.HasID = true
		}
	}
	return cmd, nil
}

// Callback разобранные данные кнопки вида action:arg:arg
type Callback struct {
	Action string
	Args   []string
}

// ParseCallback разбирает данные кнопки
func ParseCallback(data string) (Callback, error) {
	parts := strings.Split(data, ":")
	if parts[0] == "" {
		return Callback{}, fmt.Errorf("%w: пустые данные кнопки", ErrMalformedCommand)
	}
	return Callback{Action: parts[0], Args: parts[1:]}, nil
}

// Int возвращает числовой аргумент кнопки
func (c Callback) Int(i int) (int64, error) {
	if i >= len(c.Args) {
		return 0, fmt.Errorf("%w: нет аргумента %d в %s", ErrMalformedCommand, i, c.Action)
	}
	n, err := strconv.ParseInt(c.Args[i], 10, 64)
	if err != nil {
		return 0, fmt.Errorf("%w: аргумент %q в %s", ErrMalformedCommand, c.Args[i], c.Action)
	}
	return n, nil
}

// Arg возвращает строковый аргумент кнопки
func (c Callback) Arg(i int) (string, error) {
	if i >= len(c.Args) {
		return "", fmt.Errorf("%w: нет аргумента %d в %s", ErrMalformedCommand, i, c.Action)
	}
	return c.Args[i], nil
}

func callbackData(action string, args ...any) string {
	var b strings.Builder
	b.WriteString(action)
	for _, a := range args {
		b.WriteByte(':')
		fmt.Fprint(&b, a)
	}
	return b.String()
}
