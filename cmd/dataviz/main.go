// Package main 启动应用程序
package main

import "github.com/yeisme/dataviz/pkg/cmd"

//	@title			DataViz API
//	@version		1.0
//	@description	DataViz 表格导入服务：上传 CSV/XLSX 文件，解析为数据行并持久化，提供上传列表、原始文件下载与数据行查询。

//	@license.name	MIT
//	@license.url	https://opensource.org/license/mit/

//	@contact.name	yeisme
//	@contact.email	yefun2004@gmail.com.

func main() {
	if err := cmd.Execute(); err != nil {
		panic(err)
	}
}
