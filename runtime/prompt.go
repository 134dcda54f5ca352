package runtime

import (
	"context"
	"fmt"
	"strings"
)

// PromptKind tells the prompter what kind of answer is expected.
type PromptKind string

const (
	PromptGeneric PromptKind = "generic"
	PromptTOTP    PromptKind = "totp"
	PromptSMS     PromptKind = "sms"
)

// Prompter asks the person running the rotation for a value.
// It is supplied by the caller and may block until an answer arrives.
type Prompter interface {
	Prompt(ctx context.Context, message string, kind PromptKind) (string, error)
}

// PrompterFunc adapts a function to the Prompter interface.
type PrompterFunc func(ctx context.Context, message string, kind PromptKind) (string, error)

func (f PrompterFunc) Prompt(ctx context.Context, message string, kind PromptKind) (string, error) {
	return f(ctx, message, kind)
}

// challenge is a value source that asks the prompter.
type challenge struct {
	name    string
	kind    PromptKind
	message func(env *Environment) (string, error)
}

var challenges = map[string]challenge{
	"generic": {
		name: "generic",
		kind: PromptGeneric,
		message: func(*Environment) (string, error) {
			return "Enter the challenge response", nil
		},
	},
	"totp": {
		name: "totp",
		kind: PromptTOTP,
		message: func(*Environment) (string, error) {
			return "Enter your two factor (TOTP) code", nil
		},
	},
	"sms": {
		name: "sms",
		kind: PromptSMS,
		message: func(*Environment) (string, error) {
			return "Enter your SMS authorization code", nil
		},
	},
	"captcha": {
		name: "captcha",
		kind: PromptGeneric,
		message: func(env *Environment) (string, error) {
			resp, err := env.Response()
			if err != nil {
				return "", err
			}
			return fmt.Sprintf("The page at %s requires a CAPTCHA to be completed. "+
				"Please open the page, complete the CAPTCHA and paste the response data "+
				"(e.g. g-recaptcha-response for reCAPTCHA)", resp.URL), nil
		},
	},
}

func lookupChallenge(name string) (challenge, error) {
	c, ok := challenges[strings.ToLower(name)]
	if !ok {
		return challenge{}, fmt.Errorf("unknown prompt kind %q", name)
	}
	return c, nil
}

// ask resolves the message and blocks on the environment's prompter.
func (c challenge) ask(env *Environment, override *Template) (string, error) {
	var (
		msg string
		err error
	)
	if override != nil {
		msg, err = override.Get(env)
	} else {
		msg, err = c.message(env)
	}
	if err != nil {
		return "", err
	}
	return env.Prompt(msg, c.kind)
}
