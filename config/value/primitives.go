package value

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// string

type String string

func NewString(p *string, val string) *String {
	*p = val

	return (*String)(p)
}

func (s *String) Set(val string) error {
	*s = String(val)
	return nil
}

func (s *String) String() string {
	return string(*s)
}

func (s *String) Validate() error {
	return nil
}

func (s *String) IsEmpty() bool {
	return len(*s) == 0
}

// list of strings

type StringList struct {
	p         *[]string
	separator string
}

func NewStringList(p *[]string, val []string, separator string) *StringList {
	*p = append([]string{}, val...)

	return &StringList{
		p:         p,
		separator: separator,
	}
}

func (s *StringList) Set(val string) error {
	list := []string{}

	for _, elm := range strings.Split(val, s.separator) {
		if elm = strings.TrimSpace(elm); len(elm) != 0 {
			list = append(list, elm)
		}
	}

	*s.p = list

	return nil
}

func (s *StringList) String() string {
	if s.IsEmpty() {
		return "(empty)"
	}

	return strings.Join(*s.p, s.separator)
}

func (s *StringList) Validate() error {
	return nil
}

func (s *StringList) IsEmpty() bool {
	return len(*s.p) == 0
}

// boolean

type Bool bool

func NewBool(p *bool, val bool) *Bool {
	*p = val

	return (*Bool)(p)
}

func (b *Bool) Set(val string) error {
	v, err := strconv.ParseBool(val)
	if err != nil {
		return err
	}

	*b = Bool(v)

	return nil
}

func (b *Bool) String() string {
	return strconv.FormatBool(bool(*b))
}

func (b *Bool) Validate() error {
	return nil
}

func (b *Bool) IsEmpty() bool {
	return !bool(*b)
}

// integer within a range

type Int struct {
	p   *int
	min int
	max int
}

// NewInt returns an integer value that must be within [min, max].
func NewInt(p *int, val, min, max int) *Int {
	*p = val

	return &Int{
		p:   p,
		min: min,
		max: max,
	}
}

func (i *Int) Set(val string) error {
	v, err := strconv.Atoi(val)
	if err != nil {
		return err
	}

	*i.p = v

	return nil
}

func (i *Int) String() string {
	return strconv.Itoa(*i.p)
}

func (i *Int) Validate() error {
	if *i.p < i.min || *i.p > i.max {
		return fmt.Errorf("value must be between %d and %d", i.min, i.max)
	}

	return nil
}

func (i *Int) IsEmpty() bool {
	return *i.p == 0
}

// int64

type Int64 int64

func NewInt64(p *int64, val int64) *Int64 {
	*p = val

	return (*Int64)(p)
}

func (u *Int64) Set(val string) error {
	v, err := strconv.ParseInt(val, 0, 64)
	if err != nil {
		return err
	}

	*u = Int64(v)

	return nil
}

func (u *Int64) String() string {
	return strconv.FormatInt(int64(*u), 10)
}

func (u *Int64) Validate() error {
	if *u < 0 {
		return fmt.Errorf("value must not be negative")
	}

	return nil
}

func (u *Int64) IsEmpty() bool {
	return *u == 0
}

// time

type Time time.Time

func NewTime(p *time.Time, val time.Time) *Time {
	*p = val

	return (*Time)(p)
}

func (u *Time) Set(val string) error {
	v, err := time.Parse(time.RFC3339, val)
	if err != nil {
		return err
	}

	*u = Time(v)

	return nil
}

func (u *Time) String() string {
	return time.Time(*u).Format(time.RFC3339)
}

func (u *Time) Validate() error {
	return nil
}

func (u *Time) IsEmpty() bool {
	return time.Time(*u).IsZero()
}
