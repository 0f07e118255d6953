// internal/pkg/zookeeper/lock.go
package zookeeper

import (
	"context"
	"sort"
	"strings"

	"github.com/go-zookeeper/zk"
	"github.com/pkg/errors"
)

// DistributedLock 基于临时顺序节点的互斥锁。
// 每个实例只能同时持有一次，重复加锁前必须先 Unlock。
type DistributedLock struct {
	conn     *Conn
	path     string // 锁目录，例如 /orderdesk/locks/order-123
	lockNode string // 加锁成功后自己创建的节点
}

// NewDistributedLock 在 root 下为 resourceID 创建锁目录
func NewDistributedLock(conn *Conn, root, resourceID string) (*DistributedLock, error) {
	lockPath := strings.TrimRight(root, "/") + "/" + resourceID
	if err := conn.ensurePath(lockPath); err != nil {
		return nil, err
	}
	return &DistributedLock{conn: conn, path: lockPath}, nil
}

// Lock 阻塞直到拿到锁或 ctx 结束
func (l *DistributedLock) Lock(ctx context.Context) error {
	nodePath, err := l.conn.CreateProtectedEphemeralSequential(l.path+"/lock-", nil, zk.WorldACL(zk.PermAll))
	if err != nil {
		return errors.Wrap(err, "zookeeper: create sequential node")
	}
	l.lockNode = nodePath
	myName := strings.TrimPrefix(nodePath, l.path+"/")

	for {
		children, _, err := l.conn.Children(l.path)
		if err != nil {
			l.release()
			return errors.Wrap(err, "zookeeper: list lock children")
		}
		// protected 节点带 GUID 前缀，按序号排序
		sort.Slice(children, func(i, j int) bool { return seq(children[i]) < seq(children[j]) })

		idx := -1
		for i, child := range children {
			if child == myName {
				idx = i
				break
			}
		}
		switch {
		case idx < 0:
			l.release()
			return errors.New("zookeeper: own lock node vanished, session probably expired")
		case idx == 0:
			return nil
		}

		// 只监听前一个节点，避免惊群
		exists, _, events, err := l.conn.ExistsW(l.path + "/" + children[idx-1])
		if err != nil {
			l.release()
			return errors.Wrap(err, "zookeeper: watch previous node")
		}
		if !exists {
			continue
		}
		select {
		case <-events:
		case <-ctx.Done():
			l.release()
			return ctx.Err()
		}
	}
}

// Unlock 释放锁
func (l *DistributedLock) Unlock() error {
	if l.lockNode == "" {
		return errors.New("zookeeper: no lock to unlock")
	}
	err := l.conn.Delete(l.lockNode, -1)
	l.lockNode = ""
	if err != nil && !errors.Is(err, zk.ErrNoNode) {
		return errors.Wrap(err, "zookeeper: delete lock node")
	}
	return nil
}

func (l *DistributedLock) release() {
	if l.lockNode != "" {
		_ = l.conn.Delete(l.lockNode, -1)
		l.lockNode = ""
	}
}

// seq 取节点名末尾 10 位序号
func seq(name string) string {
	if len(name) < 10 {
		return name
	}
	return name[len(name)-10:]
}
