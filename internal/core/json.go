package core

import (
	"bytes"
	"encoding/json"
	"fmt"
	"sort"
	"strconv"
)

// The flat files are JSON objects whose key order is meaningful to admins
// (teams and menu groups render in file order), so they are decoded token by
// token instead of through maps.

// UnmarshalJSON decodes {"Team": ["Member", ...], ...}.
func (d *Directory) UnmarshalJSON(data []byte) error {
	dec := json.NewDecoder(bytes.NewReader(data))
	d.Teams = nil
	return decodeObject(dec, func(key string) error {
		var members []string
		if err := dec.Decode(&members); err != nil {
			return fmt.Errorf("team %q: %w", key, err)
		}
		d.Teams = append(d.Teams, Team{Name: key, Members: members})
		return nil
	})
}

// MarshalJSON encodes the directory preserving team order.
func (d Directory) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, t := range d.Teams {
		if i > 0 {
			buf.WriteByte(',')
		}
		members := t.Members
		if members == nil {
			members = []string{}
		}
		if err := writeMember(&buf, t.Name, members); err != nil {
			return nil, err
		}
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

type optionJSON struct {
	Name  string  `json:"name"`
	Price float64 `json:"price"`
}

// UnmarshalJSON decodes {"Group": {"Item": [{"name": "...", "price": 1.5}]}}.
func (m *Menu) UnmarshalJSON(data []byte) error {
	dec := json.NewDecoder(bytes.NewReader(data))
	m.Groups = nil
	return decodeObject(dec, func(group string) error {
		g := MenuGroup{Name: group}
		err := decodeObject(dec, func(item string) error {
			var opts []optionJSON
			if err := dec.Decode(&opts); err != nil {
				return fmt.Errorf("item %q: %w", item, err)
			}
			it := MenuItem{Name: item, Group: group}
			for _, o := range opts {
				it.Options = append(it.Options, Option{Name: o.Name, Price: MoneyFromFloat(o.Price)})
			}
			g.Items = append(g.Items, it)
			return nil
		})
		if err != nil {
			return fmt.Errorf("group %q: %w", group, err)
		}
		m.Groups = append(m.Groups, g)
		return nil
	})
}

// MarshalJSON encodes the menu preserving group and item order.
func (m Menu) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, g := range m.Groups {
		if i > 0 {
			buf.WriteByte(',')
		}
		var items bytes.Buffer
		items.WriteByte('{')
		for j, it := range g.Items {
			if j > 0 {
				items.WriteByte(',')
			}
			opts := make([]optionJSON, 0, len(it.Options))
			for _, o := range it.Options {
				opts = append(opts, optionJSON{Name: o.Name, Price: o.Price.Dollars()})
			}
			if err := writeMember(&items, it.Name, opts); err != nil {
				return nil, err
			}
		}
		items.WriteByte('}')
		if err := writeMember(&buf, g.Name, json.RawMessage(items.Bytes())); err != nil {
			return nil, err
		}
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// UnmarshalJSON decodes {"Team": 100.0}.
func (b *Budgets) UnmarshalJSON(data []byte) error {
	var raw map[string]float64
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	out := make(Budgets, len(raw))
	for team, v := range raw {
		out[team] = MoneyFromFloat(v)
	}
	*b = out
	return nil
}

// MarshalJSON encodes budgets as dollar floats with sorted keys.
func (b Budgets) MarshalJSON() ([]byte, error) {
	teams := make([]string, 0, len(b))
	for t := range b {
		teams = append(teams, t)
	}
	sort.Strings(teams)
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, t := range teams {
		if i > 0 {
			buf.WriteByte(',')
		}
		num := json.Number(strconv.FormatFloat(b[t].Dollars(), 'f', 2, 64))
		if err := writeMember(&buf, t, num); err != nil {
			return nil, err
		}
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

func writeMember(buf *bytes.Buffer, key string, value any) error {
	k, err := json.Marshal(key)
	if err != nil {
		return err
	}
	v, err := json.Marshal(value)
	if err != nil {
		return err
	}
	buf.Write(k)
	buf.WriteByte(':')
	buf.Write(v)
	return nil
}

// decodeObject walks one JSON object, calling fn with each key while the
// decoder is positioned at the matching value.
func decodeObject(dec *json.Decoder, fn func(key string) error) error {
	tok, err := dec.Token()
	if err != nil {
		return err
	}
	if delim, ok := tok.(json.Delim); !ok || delim != '{' {
		return fmt.Errorf("expected object, got %v", tok)
	}
	for dec.More() {
		tok, err := dec.Token()
		if err != nil {
			return err
		}
		key, ok := tok.(string)
		if !ok {
			return fmt.Errorf("expected object key, got %v", tok)
		}
		if err := fn(key); err != nil {
			return err
		}
	}
	_, err = dec.Token()
	return err
}
