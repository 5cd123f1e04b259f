package server

import (
	"strconv"
	"strings"

	"github.com/iGentAI/ferrous/pkg/bridge"
	"github.com/iGentAI/ferrous/pkg/resp"
)

// passthroughCommands is the small set of data commands SPEC_FULL.md
// §4.14 names as reachable directly from a client connection, so that a
// script's redis.call side effects are observable without needing a
// second server to inspect them from.
var passthroughCommands = map[string]bool{
	"GET": true, "SET": true, "DEL": true, "INCR": true, "EXPIRE": true, "TTL": true,
	"HGET": true, "HSET": true, "LPUSH": true, "RPUSH": true, "SADD": true,
}

// dispatch routes one inbound command to the script executor or the
// storage passthrough set, per spec.md §6.4.
func (s *Server) dispatch(argv []string) resp.Frame {
	if len(argv) == 0 {
		return resp.ErrorReply("ERR empty command")
	}
	cmd := strings.ToUpper(argv[0])
	args := argv[1:]

	switch cmd {
	case "PING":
		return resp.Frame{Type: resp.TypeSimpleString, Str: "PONG"}
	case "EVAL":
		return s.cmdEval(args)
	case "EVALSHA":
		return s.cmdEvalSHA(args)
	case "SCRIPT":
		return s.cmdScript(args)
	default:
		if passthroughCommands[cmd] {
			return bridge.Dispatch(s.storage, cmd, args)
		}
		return resp.ErrorReply("ERR unknown command '" + argv[0] + "'")
	}
}

func (s *Server) cmdEval(args []string) resp.Frame {
	keys, argv, err := splitKeysArgv(args)
	if err != nil {
		return resp.ErrorReply(err.Error())
	}
	return s.exec.Eval(args[0], keys, argv)
}

func (s *Server) cmdEvalSHA(args []string) resp.Frame {
	keys, argv, err := splitKeysArgv(args)
	if err != nil {
		return resp.ErrorReply(err.Error())
	}
	return s.exec.EvalSHA(args[0], keys, argv)
}

// splitKeysArgv parses EVAL/EVALSHA's "script-or-sha numkeys key... arg..."
// shape per spec.md §6.4.
func splitKeysArgv(args []string) (keys, argv []string, err error) {
	if len(args) < 2 {
		return nil, nil, wrongArgsErr("eval")
	}
	numKeys, convErr := strconv.Atoi(args[1])
	if convErr != nil {
		return nil, nil, wrongIntErr()
	}
	if numKeys < 0 {
		return nil, nil, negativeKeysErr()
	}
	rest := args[2:]
	if numKeys > len(rest) {
		return nil, nil, tooManyKeysErr()
	}
	return rest[:numKeys], rest[numKeys:], nil
}

func (s *Server) cmdScript(args []string) resp.Frame {
	if len(args) == 0 {
		return wrongArgsErr("script")
	}
	sub := strings.ToUpper(args[0])
	switch sub {
	case "LOAD":
		if len(args) != 2 {
			return wrongArgsErr("script|load")
		}
		cs, err := s.exec.Load(args[1])
		if err != nil {
			return resp.ErrorReply("ERR Error compiling script: " + err.Error())
		}
		return resp.Bulk(cs.SHA)
	case "EXISTS":
		items := make([]resp.Frame, len(args)-1)
		for i, sha := range args[1:] {
			if s.exec.Exists(sha) {
				items[i] = resp.Int(1)
			} else {
				items[i] = resp.Int(0)
			}
		}
		return resp.Arr(items...)
	case "FLUSH":
		s.exec.Flush()
		return resp.OK()
	case "KILL":
		if s.exec.Kill() {
			return resp.OK()
		}
		return resp.ErrorReply("NOTBUSY No scripts in execution right now.")
	default:
		return resp.ErrorReply("ERR Unknown SCRIPT subcommand or wrong number of arguments for '" + args[0] + "'")
	}
}

func wrongArgsErr(cmd string) resp.Frame {
	return resp.ErrorReply("ERR wrong number of arguments for '" + cmd + "' command")
}

func wrongIntErr() resp.Frame {
	return resp.ErrorReply("ERR value is not an integer or out of range")
}

func negativeKeysErr() resp.Frame {
	return resp.ErrorReply("ERR Number of keys can't be negative")
}

func tooManyKeysErr() resp.Frame {
	return resp.ErrorReply("ERR Number of keys can't be greater than number of args")
}
