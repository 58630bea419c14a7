// arkcli 是一个直连ARK服务器的交互式RCON命令行工具，
// 用于在不经过控制台服务的情况下调试服务器。
package main

import (
	"bufio"
	"flag"
	"fmt"
	"os"
	"strings"

	"github.com/fatih/color"
	"github.com/mattn/go-isatty"
	"github.com/xrjr/mcutils/pkg/rcon"
	"golang.org/x/term"
)

// CLI选项
type cliOptions struct {
	address     string
	port        int
	password    string
	enableColor bool
}

// CLI颜色设置
var (
	errorColor   = color.New(color.FgRed)
	successColor = color.New(color.FgGreen)
	promptColor  = color.New(color.FgCyan, color.Bold)
)

func parseFlags() cliOptions {
	var options cliOptions

	flag.StringVar(&options.address, "addr", "127.0.0.1", "RCON地址")
	flag.IntVar(&options.port, "port", 32330, "RCON端口")
	flag.StringVar(&options.password, "password", "", "RCON密码，不指定时交互输入")
	flag.BoolVar(&options.enableColor, "color", isatty.IsTerminal(os.Stdout.Fd()), "启用彩色输出")

	flag.Parse()
	return options
}

// readPassword 从终端读取密码，不回显
func readPassword() (string, error) {
	promptColor.Print("RCON密码: ")
	data, err := term.ReadPassword(int(os.Stdin.Fd()))
	fmt.Println()
	if err != nil {
		return "", err
	}
	return string(data), nil
}

func main() {
	options := parseFlags()
	color.NoColor = !options.enableColor

	if options.password == "" {
		password, err := readPassword()
		if err != nil {
			errorColor.Fprintf(os.Stderr, "读取密码失败: %v\n", err)
			os.Exit(1)
		}
		options.password = password
	}

	client := rcon.NewClient(options.address, options.port)
	if err := client.Connect(); err != nil {
		errorColor.Fprintf(os.Stderr, "连接RCON失败: %v\n", err)
		os.Exit(1)
	}
	defer client.Disconnect()

	ok, err := client.Authenticate(options.password)
	if err != nil {
		errorColor.Fprintf(os.Stderr, "RCON认证错误: %v\n", err)
		os.Exit(1)
	}
	if !ok {
		errorColor.Fprintln(os.Stderr, "RCON认证失败: 密码错误")
		os.Exit(1)
	}

	successColor.Printf("已连接到 %s:%d，输入命令并回车，exit退出\n", options.address, options.port)

	scanner := bufio.NewScanner(os.Stdin)
	for {
		promptColor.Print("> ")
		if !scanner.Scan() {
			break
		}
		command := strings.TrimSpace(scanner.Text())
		if command == "" {
			continue
		}
		if command == "exit" || command == "quit" {
			break
		}

		reply, err := client.Command(command)
		if err != nil {
			errorColor.Printf("命令执行失败: %v\n", err)
			// 命令失败后链路往往已不可用，尝试重连一次
			client.Disconnect()
			client = rcon.NewClient(options.address, options.port)
			if err := client.Connect(); err != nil {
				errorColor.Fprintf(os.Stderr, "重连失败: %v\n", err)
				os.Exit(1)
			}
			if ok, err := client.Authenticate(options.password); err != nil || !ok {
				errorColor.Fprintln(os.Stderr, "重连后认证失败")
				os.Exit(1)
			}
			successColor.Println("已重连")
			continue
		}

		reply = strings.TrimRight(reply, "\n ")
		if reply == "" {
			successColor.Println("(无输出)")
			continue
		}
		fmt.Println(reply)
	}

	if err := scanner.Err(); err != nil {
		errorColor.Fprintf(os.Stderr, "读取输入失败: %v\n", err)
		os.Exit(1)
	}
}
