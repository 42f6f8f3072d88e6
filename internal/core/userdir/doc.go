// Package userdir 实现用户目录
//
// 以 Q8ID 为键保存用户资料。记录在首次观察到节点时创建，永不删除；
// 读取总是返回值副本，不会看到写了一半的记录。
//
// # 合并规则
//
// 每个字段单独记录最近一次生效的时间戳。更新的内嵌时间戳严格大于
// 该字段已有时间戳时才覆盖，相等或更旧的更新被丢弃。因此：
//   - 同一更新重复投递不改变状态
//   - 乱序到达的更新不会让字段回退
//
// Verified / Blocked 是本地标记，只能通过 SetVerified / SetBlocked 修改。
//
// # 资料请求
//
// RequestMissingInfo 在记录不存在或名字为空时发出一次资料请求，
// 每个节点在冷却窗口内最多请求一次。
package userdir
