// Package voice maps spoken transcripts onto player control commands.
package voice

import (
	"encoding/json"
	"regexp"
	"strings"
)

// Action is a player control verb. The zero value means no command.
type Action string

const (
	None       Action = ""
	Pause      Action = "pause"
	Resume     Action = "resume"
	Next       Action = "next"
	Previous   Action = "previous"
	Stop       Action = "stop"
	VolumeUp   Action = "volume_up"
	VolumeDown Action = "volume_down"
	Play       Action = "play"
)

// Command is the parse result. Parameters is set only for Play.
type Command struct {
	Action     Action
	Parameters map[string]string
}

// MarshalJSON renders an unrecognized command as {"action": null}.
func (c Command) MarshalJSON() ([]byte, error) {
	out := struct {
		Action     *Action           `json:"action"`
		Parameters map[string]string `json:"parameters,omitempty"`
	}{Parameters: c.Parameters}
	if c.Action != None {
		a := c.Action
		out.Action = &a
	}
	return json.Marshal(out)
}

type rule struct {
	action Action
	re     *regexp.Regexp
}

// Order matters: the first matching rule wins.
var rules = []rule{
	{Pause, regexp.MustCompile(`(^|\s)(pause|hold|wait|stop playing)(\s|$)`)},
	{Resume, regexp.MustCompile(`(^|\s)(resume|continue)(\s|$)|(^|\s)play$`)},
	{Next, regexp.MustCompile(`(^|\s)(next|skip)(\s|$)`)},
	{Previous, regexp.MustCompile(`(^|\s)(previous|back|prev)(\s|$)`)},
	{Stop, regexp.MustCompile(`(^|\s)stop(\s|$)`)},
	{VolumeUp, regexp.MustCompile(`volume up|turn it up|louder`)},
	{VolumeDown, regexp.MustCompile(`volume down|turn it down|softer|quieter`)},
}

var playQuery = regexp.MustCompile(`(^|\s)play\s+(.*)`)

// Parse matches text against the command patterns. Matching is plain
// pattern matching on the trimmed, lower-cased text.
func Parse(text string) Command {
	t := strings.ToLower(strings.TrimSpace(text))
	if t == "" {
		return Command{}
	}
	for _, r := range rules {
		if r.re.MatchString(t) {
			return Command{Action: r.action}
		}
	}
	if m := playQuery.FindStringSubmatch(t); m != nil {
		if q := strings.TrimSpace(m[2]); q != "" {
			return Command{Action: Play, Parameters: map[string]string{"query": q}}
		}
	}
	return Command{}
}
