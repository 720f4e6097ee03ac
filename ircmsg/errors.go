package ircmsg

import "fmt"

// ParseErrorKind names why a frame did not satisfy a typed variant's shape.
type ParseErrorKind string

const (
	ErrInvalidCommand ParseErrorKind = "invalid_command"
	ErrExpectedArg    ParseErrorKind = "expected_arg"
	ErrExpectedData   ParseErrorKind = "expected_data"
	ErrExpectedTag    ParseErrorKind = "expected_tag"
)

// ParseError reports a typed-parse mismatch. It never occurs for absent
// optional tags, only for a missing field the variant requires.
type ParseError struct {
	Kind    ParseErrorKind
	Command string
	Detail  string
}

func (e *ParseError) Error() string {
	if e.Detail == "" {
		return fmt.Sprintf("ircmsg: %s: %s", e.Command, e.Kind)
	}
	return fmt.Sprintf("ircmsg: %s: %s: %s", e.Command, e.Kind, e.Detail)
}

func expectedArg(command string, index int) error {
	return &ParseError{Kind: ErrExpectedArg, Command: command, Detail: fmt.Sprintf("arg[%d]", index)}
}

func expectedData(command string) error {
	return &ParseError{Kind: ErrExpectedData, Command: command}
}

func expectedTag(command, tag string) error {
	return &ParseError{Kind: ErrExpectedTag, Command: command, Detail: tag}
}

func invalidCommand(command string) error {
	return &ParseError{Kind: ErrInvalidCommand, Command: command}
}
