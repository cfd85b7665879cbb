package smbclient_test

import (
	"context"
	"fmt"
	"io"

	"github.com/smbclient-go/smbclient"
	"github.com/smbclient-go/smbclient/internal/smbtest"
)

func Example() {
	ctx := context.Background()

	cfg, err := smbclient.ParseURL("smb://Guest:@localhost/share")
	if err != nil {
		panic(err)
	}

	c, err := smbclient.Connect(ctx, cfg)
	if err != nil {
		panic(err)
	}
	defer c.Close()

	err = c.Upload(ctx, []byte("Hello world!"), "hello.txt", nil)
	if err != nil {
		panic(err)
	}
	defer c.DeleteFile(ctx, "hello.txt")

	bs, err := c.Download(ctx, "hello.txt")
	if err != nil {
		panic(err)
	}

	fmt.Println(string(bs))
}

func ExampleClient_ListShares() {
	srv := smbtest.NewServer("fileserver")
	srv.AddAccount("alice", "secret")
	srv.AddShare("public", "Public files")
	srv.AddShare("scans", "Scanner output")
	defer srv.Disconnect()

	ctx := context.Background()

	c, err := smbclient.NewClient(ctx, smbclient.NewDirectTransport(srv.Pipe()), &smbclient.Config{Host: "fileserver"})
	if err != nil {
		panic(err)
	}
	defer c.Close()

	if err := c.Login(ctx, "alice", "secret", ""); err != nil {
		panic(err)
	}

	shares, err := c.ListShares(ctx)
	if err != nil {
		panic(err)
	}

	for _, s := range shares {
		if s.IsDisk() {
			fmt.Println(s.Name, s.Comment)
		}
	}

	// Output:
	// public Public files
	// scans Scanner output
}

func ExampleClient_FileReader() {
	srv := smbtest.NewServer("fileserver")
	srv.AddAccount("alice", "secret")
	srv.AddShare("public", "")
	srv.WriteFile("public", `notes\todo.txt`, []byte("buy milk\n"))
	defer srv.Disconnect()

	ctx := context.Background()

	c, err := smbclient.NewClient(ctx, smbclient.NewDirectTransport(srv.Pipe()), &smbclient.Config{Host: "fileserver"})
	if err != nil {
		panic(err)
	}
	defer c.Close()

	if err := c.Login(ctx, "alice", "secret", ""); err != nil {
		panic(err)
	}
	if err := c.ConnectShare(ctx, "public"); err != nil {
		panic(err)
	}

	r := c.FileReader("notes/todo.txt")
	defer r.Close()

	bs, err := io.ReadAll(r)
	if err != nil {
		panic(err)
	}

	fmt.Print(string(bs))

	// Output:
	// buy milk
}
